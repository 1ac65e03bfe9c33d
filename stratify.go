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
	"strings"
)

// Stratifier maps one base observation plus its locus context to a discrete
// classification value.  Implementations must be pure and total: when an
// attribute is undefined for an observation (e.g. pair orientation of an
// unpaired read), Stratify reports ok=false and the observation is skipped
// by that aggregation only; Stratify never fails.
type Stratifier interface {
	// Name is the stable token used in directives, e.g. "BASE_QUALITY".
	Name() string
	// Suffix is the filename-safe token composed into output suffixes,
	// e.g. "base_quality".
	Suffix() string
	// Stratify classifies one observation.
	Stratify(obs BaseObservation, ctx *LocusContext) (value string, ok bool)
}

// StratumKey is one concrete combination of stratifier outputs, rendered in
// its external form: component values joined in stratifier order.  Order
// matters; it is not a set.
type StratumKey string

const stratumKeySeparator = ","

// CompositeStratifier composes an ordered list of stratifiers into a single
// composite key.  The zero value (no components) is the identity
// non-stratifier, classifying every observation into the single "all"
// stratum.
type CompositeStratifier struct {
	parts []Stratifier
}

// NewCompositeStratifier builds a composite over parts, preserving order.
func NewCompositeStratifier(parts ...Stratifier) CompositeStratifier {
	return CompositeStratifier{parts: parts}
}

// Parts returns the component stratifiers in order.
func (c CompositeStratifier) Parts() []Stratifier { return c.parts }

// Suffix joins the component suffixes with "_and_"; the identity composite
// has suffix "all".
func (c CompositeStratifier) Suffix() string {
	if len(c.parts) == 0 {
		return "all"
	}
	suffixes := make([]string, len(c.parts))
	for i, s := range c.parts {
		suffixes[i] = s.Suffix()
	}
	return strings.Join(suffixes, "_and_")
}

// Key computes the composite stratum key for one observation.  ok is false
// when any component reports not-applicable; such observations are skipped.
func (c CompositeStratifier) Key(obs BaseObservation, ctx *LocusContext) (StratumKey, bool) {
	if len(c.parts) == 0 {
		return "all", true
	}
	if len(c.parts) == 1 {
		v, ok := c.parts[0].Stratify(obs, ctx)
		return StratumKey(v), ok
	}
	values := make([]string, len(c.parts))
	for i, s := range c.parts {
		v, ok := s.Stratify(obs, ctx)
		if !ok {
			return "", false
		}
		values[i] = v
	}
	return StratumKey(strings.Join(values, stratumKeySeparator)), true
}
