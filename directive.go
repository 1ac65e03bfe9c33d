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
	"fmt"
	"strings"
)

// A directive is the textual form "ERROR_TYPE(:STRATIFIER_NAME)*", e.g.
// "ERROR:BASE_QUALITY:CYCLE".  Names are case-sensitive and resolved
// against the calculator and stratifier registries.

const directiveSeparator = ":"

// DefaultDirectives returns the default directive set collected when the
// caller specifies none.
func DefaultDirectives() []string {
	return []string{
		"ERROR",
		"ERROR:BASE_QUALITY",
		"ERROR:INSERT_LENGTH",
		"ERROR:GC_CONTENT",
		"ERROR:READ_DIRECTION",
		"ERROR:PAIR_ORIENTATION",
		"ERROR:HOMOPOLYMER",
		"ERROR:BINNED_HOMOPOLYMER",
		"ERROR:CYCLE",
		"ERROR:READ_ORDINALITY",
		"ERROR:READ_ORDINALITY:CYCLE",
		"ERROR:READ_ORDINALITY:HOMOPOLYMER",
		"ERROR:READ_ORDINALITY:GC_CONTENT",
		"ERROR:MAPPING_QUALITY",
		"ERROR:READ_GROUP",
		"ERROR:MISMATCHES_IN_READ",
		"ERROR:ONE_BASE_PADDED_CONTEXT",
		"OVERLAPPING_ERROR",
		"OVERLAPPING_ERROR:BASE_QUALITY",
		"OVERLAPPING_ERROR:INSERT_LENGTH",
		"OVERLAPPING_ERROR:READ_ORDINALITY",
		"OVERLAPPING_ERROR:READ_ORDINALITY:CYCLE",
		"OVERLAPPING_ERROR:READ_ORDINALITY:HOMOPOLYMER",
		"OVERLAPPING_ERROR:READ_ORDINALITY:GC_CONTENT",
		"INDEL_ERROR",
	}
}

// MaxDirectiveTerms is the hard upper bound on the number of terms a single
// directive may contain: one error type plus at most one of each stratifier
// kind.
func MaxDirectiveTerms() int {
	return len(stratifierRegistry) + 1
}

// ParseDirective translates one directive into a fully constructed
// Aggregation.  Unknown names, empty directives, and term counts above
// MaxDirectiveTerms are configuration errors with distinct messages.
func ParseDirective(directive string, opts StratifierOpts) (*Aggregation, error) {
	terms := strings.Split(directive, directiveSeparator)
	if len(terms) > MaxDirectiveTerms() {
		return nil, fmt.Errorf("errstats: directive %q has %d terms, more than the %d available (one error type plus one of each stratifier)",
			directive, len(terms), MaxDirectiveTerms())
	}
	calcName := strings.TrimSpace(terms[0])
	if calcName == "" {
		return nil, fmt.Errorf("errstats: empty directive")
	}
	entry, ok := calculatorByName(calcName)
	if !ok {
		return nil, fmt.Errorf("errstats: unknown error type %q in directive %q (available: %s)",
			calcName, directive, strings.Join(CalculatorNames(), ", "))
	}
	stratifiers := make([]Stratifier, 0, len(terms)-1)
	for _, term := range terms[1:] {
		name := strings.TrimSpace(term)
		s, found := stratifierByName(name, opts)
		if !found {
			return nil, fmt.Errorf("errstats: unknown stratifier %q in directive %q (available: %s)",
				name, directive, strings.Join(StratifierNames(), ", "))
		}
		stratifiers = append(stratifiers, s)
	}
	return newAggregation(entry, NewCompositeStratifier(stratifiers...)), nil
}

// BuildAggregations parses every directive and rejects duplicate
// aggregation suffixes.  It is called before any locus is processed, so all
// configuration errors surface up front.
func BuildAggregations(directives []string, opts StratifierOpts) ([]*Aggregation, error) {
	aggs := make([]*Aggregation, 0, len(directives))
	suffixes := make(map[string]string, len(directives))
	for _, directive := range directives {
		agg, err := ParseDirective(directive, opts)
		if err != nil {
			return nil, err
		}
		if prev, dup := suffixes[agg.Suffix()]; dup {
			return nil, fmt.Errorf("errstats: directives %q and %q produce the same suffix %q",
				prev, directive, agg.Suffix())
		}
		suffixes[agg.Suffix()] = directive
		aggs = append(aggs, agg)
	}
	return aggs, nil
}
