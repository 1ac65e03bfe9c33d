// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package errstats

import (
	"sort"
)

// Aggregation binds one calculator factory to one composite stratifier and
// owns a lazily populated calculator per distinct stratum actually
// observed.  Aggregations are fully independent of each other; all mutation
// happens on the single processing goroutine.
type Aggregation struct {
	calcName      string
	suffix        string
	newCalculator func() Calculator
	stratifier    CompositeStratifier

	calculators map[StratumKey]Calculator
}

func newAggregation(entry calculatorEntry, stratifier CompositeStratifier) *Aggregation {
	return &Aggregation{
		calcName:      entry.name,
		suffix:        entry.suffix + "_by_" + stratifier.Suffix(),
		newCalculator: entry.make,
		stratifier:    stratifier,
		calculators:   make(map[StratumKey]Calculator),
	}
}

// Suffix returns the deterministic, filename-safe suffix identifying this
// aggregation within a run, e.g. "error_by_base_quality_and_gc".
func (a *Aggregation) Suffix() string { return a.suffix }

// Stratifier returns the aggregation's composite stratifier.
func (a *Aggregation) Stratifier() CompositeStratifier { return a.stratifier }

// AddBase classifies one observation and forwards it to the stratum's
// calculator, creating the calculator on first sight of a new stratum.
// Observations the stratifier reports as not-applicable are skipped.
func (a *Aggregation) AddBase(obs BaseObservation, ctx *LocusContext) {
	key, ok := a.stratifier.Key(obs, ctx)
	if !ok {
		return
	}
	calc, found := a.calculators[key]
	if !found {
		calc = a.newCalculator()
		a.calculators[key] = calc
	}
	calc.AddBase(obs, ctx)
}

// Metrics finalizes every observed stratum into a metric record with
// derived fields computed against priorErr, sorted by covariate for
// deterministic output.
func (a *Aggregation) Metrics(priorErr float64) []Metric {
	keys := make([]string, 0, len(a.calculators))
	for key := range a.calculators {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)
	metrics := make([]Metric, len(keys))
	for i, key := range keys {
		m := a.calculators[StratumKey(key)].Metric(key)
		m.ComputeDerived(priorErr)
		metrics[i] = m
	}
	return metrics
}

// templateMetric returns an empty metric of this aggregation's type, used
// for header rendering.
func (a *Aggregation) templateMetric() Metric {
	return a.newCalculator().Metric("")
}
