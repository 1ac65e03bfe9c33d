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
	"math"
)

// Phred-math routines shared by the calculators.

// RateUndefined marks a stratum with zero qualifying observations; such
// strata never report 0 or 1 as a real rate.
const RateUndefined = -1.0

// ErrorProbFromPhred converts a phred-scaled quality to a linear error
// probability.
func ErrorProbFromPhred(q int) float64 {
	return math.Exp(float64(q) * (-0.1 * math.Ln10))
}

// PhredFromErrorProb converts a linear error probability to a rounded
// phred-scaled quality.  Probabilities of zero (or below) map to the
// largest representable quality rather than +Inf.
func PhredFromErrorProb(p float64) int {
	const maxQual = 93 // '~' - '!', the largest FASTQ-encodable qual
	if p <= 0 {
		return maxQual
	}
	q := int(math.Round(math.Log10(p) * -10.0))
	if q > maxQual {
		q = maxQual
	}
	return q
}

// shrunkRate combines observed error/total counts with a linear prior error
// probability, pulling low-n strata toward the prior: a beta-binomial-style
// posterior mean with a single pseudo-observation carrying the prior rate,
//   (errors + priorErr) / (total + 1).
// A zero-observation stratum yields RateUndefined.
func shrunkRate(errors, total int64, priorErr float64) float64 {
	if total == 0 {
		return RateUndefined
	}
	return (float64(errors) + priorErr) / (float64(total) + 1.0)
}
