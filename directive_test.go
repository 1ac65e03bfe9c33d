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
package errstats_test

import (
	"strings"
	"testing"

	"github.com/grailbio/errstats"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		directive string
		suffix    string
	}{
		{"ERROR", "error_by_all"},
		{"ERROR:BASE_QUALITY", "error_by_base_quality"},
		{"ERROR:GC_CONTENT", "error_by_gc"},
		{"ERROR:READ_ORDINALITY:CYCLE", "error_by_read_ordinality_and_cycle"},
		{"OVERLAPPING_ERROR", "overlapping_error_by_all"},
		{"INDEL_ERROR", "indel_error_by_all"},
	}
	for _, test := range tests {
		agg, err := errstats.ParseDirective(test.directive, errstats.DefaultStratifierOpts)
		assert.NoError(t, err, "%s", test.directive)
		expect.EQ(t, agg.Suffix(), test.suffix, "%s", test.directive)
	}
}

func TestParseDirectiveErrors(t *testing.T) {
	tests := []struct {
		directive string
		wantIn    string
	}{
		{"", "empty directive"},
		{"BOGUS", "unknown error type"},
		{"ERROR:BOGUS", "unknown stratifier"},
		{"ERROR:cycle", "unknown stratifier"}, // names are case-sensitive
	}
	for _, test := range tests {
		_, err := errstats.ParseDirective(test.directive, errstats.DefaultStratifierOpts)
		assert.NotNil(t, err, "%s", test.directive)
		expect.True(t, strings.Contains(err.Error(), test.wantIn),
			"%s: got %v", test.directive, err)
	}

	// One term more than one error type plus every stratifier kind.
	terms := append([]string{"ERROR"}, errstats.StratifierNames()...)
	terms = append(terms, "CYCLE")
	_, err := errstats.ParseDirective(strings.Join(terms, ":"), errstats.DefaultStratifierOpts)
	assert.NotNil(t, err)
	expect.True(t, strings.Contains(err.Error(), "more than"), "got %v", err)
}

func TestBuildAggregations(t *testing.T) {
	aggs, err := errstats.BuildAggregations(errstats.DefaultDirectives(), errstats.DefaultStratifierOpts)
	assert.NoError(t, err)
	expect.EQ(t, len(aggs), len(errstats.DefaultDirectives()))

	// Every default aggregation gets a distinct output suffix.
	seen := map[string]bool{}
	for _, agg := range aggs {
		expect.False(t, seen[agg.Suffix()], "duplicate suffix %s", agg.Suffix())
		seen[agg.Suffix()] = true
	}

	_, err = errstats.BuildAggregations([]string{"ERROR:CYCLE", "ERROR:CYCLE"}, errstats.DefaultStratifierOpts)
	assert.NotNil(t, err)
	expect.True(t, strings.Contains(err.Error(), "same suffix"), "got %v", err)
}
