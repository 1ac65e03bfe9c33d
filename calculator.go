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

// Calculator is a pure accumulator turning classified base observations
// into count-based error statistics.  Counts are only ever incremented.
type Calculator interface {
	// AddBase consumes one observation.
	AddBase(obs BaseObservation, ctx *LocusContext)
	// Metric snapshots the calculator's counts into a metric record for the
	// given covariate.  Derived fields are not yet computed.
	Metric(covariate string) Metric
}

type simpleErrorCalculator struct {
	totalBases int64
	errorBases int64
}

func (c *simpleErrorCalculator) AddBase(obs BaseObservation, ctx *LocusContext) {
	c.totalBases++
	if obs.Type != AlignMatch {
		// Indel observations contribute to the denominator but are not
		// substitution errors.
		return
	}
	if base, ok := obs.Base(); ok && base != ctx.RefBase {
		c.errorBases++
	}
}

func (c *simpleErrorCalculator) Metric(covariate string) Metric {
	return &SubstitutionErrorMetric{
		MetricBase: MetricBase{Covariate: covariate, TotalBases: c.totalBases},
		ErrorBases: c.errorBases,
	}
}

type overlappingErrorCalculator struct {
	totalBases                     int64
	disagreesWithRefOnly           int64
	disagreesWithRefAgreesWithMate int64
	threeWaysDisagreement          int64
}

func (c *overlappingErrorCalculator) AddBase(obs BaseObservation, ctx *LocusContext) {
	if obs.Type != AlignMatch {
		return
	}
	mate, ok := ctx.MateAt(obs)
	if !ok {
		// No overlapping mate at this locus: excluded, not zero-filled.
		return
	}
	base, baseOk := obs.Base()
	mateBase, mateOk := mate.Base()
	if !baseOk || !mateOk {
		return
	}
	c.totalBases++
	if base == ctx.RefBase {
		return
	}
	switch {
	case mateBase == base:
		c.disagreesWithRefAgreesWithMate++
	case mateBase == ctx.RefBase:
		c.disagreesWithRefOnly++
	default:
		c.threeWaysDisagreement++
	}
}

func (c *overlappingErrorCalculator) Metric(covariate string) Metric {
	return &OverlappingErrorMetric{
		MetricBase:                     MetricBase{Covariate: covariate, TotalBases: c.totalBases},
		DisagreesWithRefOnly:           c.disagreesWithRefOnly,
		DisagreesWithRefAgreesWithMate: c.disagreesWithRefAgreesWithMate,
		ThreeWaysDisagreement:          c.threeWaysDisagreement,
	}
}

type indelErrorCalculator struct {
	totalBases    int64
	numInsertions int64
	numDeletions  int64
}

func (c *indelErrorCalculator) AddBase(obs BaseObservation, _ *LocusContext) {
	c.totalBases++
	switch obs.Type {
	case AlignInsertion:
		c.numInsertions++
	case AlignDeletion:
		c.numDeletions++
	}
}

func (c *indelErrorCalculator) Metric(covariate string) Metric {
	return &IndelErrorMetric{
		MetricBase:    MetricBase{Covariate: covariate, TotalBases: c.totalBases},
		NumInsertions: c.numInsertions,
		NumDeletions:  c.numDeletions,
	}
}

type calculatorEntry struct {
	name   string
	suffix string
	make   func() Calculator
}

// calculatorRegistry enumerates the calculator family by directive name.
var calculatorRegistry = []calculatorEntry{
	{"ERROR", "error", func() Calculator { return &simpleErrorCalculator{} }},
	{"OVERLAPPING_ERROR", "overlapping_error", func() Calculator { return &overlappingErrorCalculator{} }},
	{"INDEL_ERROR", "indel_error", func() Calculator { return &indelErrorCalculator{} }},
}

func calculatorByName(name string) (calculatorEntry, bool) {
	for _, e := range calculatorRegistry {
		if e.name == name {
			return e, true
		}
	}
	return calculatorEntry{}, false
}

// CalculatorNames returns the directive tokens of the calculator family,
// for help/introspection output.
func CalculatorNames() []string {
	names := make([]string, len(calculatorRegistry))
	for i, e := range calculatorRegistry {
		names[i] = e.name
	}
	return names
}
