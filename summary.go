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
	"github.com/grailbio/base/log"
	"github.com/montanaflynn/stats"
)

// observedRate extracts the primary rate field of a finalized metric.
func observedRate(m Metric) float64 {
	switch v := m.(type) {
	case *SubstitutionErrorMetric:
		return v.ErrorRate
	case *OverlappingErrorMetric:
		return v.ErrorRate
	case *IndelErrorMetric:
		return v.IndelRate
	}
	return RateUndefined
}

// LogSummary logs a per-aggregation digest of the finalized rates: stratum
// count and mean/median/max rate across strata with defined rates.
func LogSummary(aggs []*Aggregation, priorQual int) {
	priorErr := ErrorProbFromPhred(priorQual)
	for _, agg := range aggs {
		metrics := agg.Metrics(priorErr)
		rates := make([]float64, 0, len(metrics))
		for _, m := range metrics {
			if r := observedRate(m); r != RateUndefined {
				rates = append(rates, r)
			}
		}
		if len(rates) == 0 {
			log.Printf("errstats: %s: %d strata, no defined rates", agg.Suffix(), len(metrics))
			continue
		}
		mean, _ := stats.Mean(rates)
		median, _ := stats.Median(rates)
		max, _ := stats.Max(rates)
		log.Printf("errstats: %s: %d strata, error rate mean %.3g median %.3g max %.3g",
			agg.Suffix(), len(metrics), mean, median, max)
	}
}
