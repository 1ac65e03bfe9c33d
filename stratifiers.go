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
	"strconv"

	"github.com/grailbio/hts/sam"
)

// Concrete stratifier kinds.  Each kind declares a stable directive name and
// a filename suffix; the registry at the bottom of this file is the single
// source of truth for name resolution and for the directive term-count
// bound.

// StratifierOpts carries the tunables consumed by individual stratifiers.
type StratifierOpts struct {
	// LongHomopolymer is the shortest homopolymer considered long by the
	// BINNED_HOMOPOLYMER stratifier.
	LongHomopolymer int
}

// DefaultStratifierOpts matches the upstream tool defaults.
var DefaultStratifierOpts = StratifierOpts{
	LongHomopolymer: 6,
}

// gcWindow is the number of reference bases on each side of the locus
// included in the GC_CONTENT window.
const gcWindow = 50

// insertLengthBucket is the rounding granularity of the INSERT_LENGTH
// stratifier.
const insertLengthBucket = 10

type baseQualityStratifier struct{}

func (baseQualityStratifier) Name() string   { return "BASE_QUALITY" }
func (baseQualityStratifier) Suffix() string { return "base_quality" }
func (baseQualityStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	q, ok := obs.Qual()
	if !ok {
		return "", false
	}
	return strconv.Itoa(int(q)), true
}

type insertLengthStratifier struct{}

func (insertLengthStratifier) Name() string   { return "INSERT_LENGTH" }
func (insertLengthStratifier) Suffix() string { return "insert_length" }
func (insertLengthStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	samr := obs.Record
	if samr.Flags&sam.Paired == 0 || samr.TempLen == 0 {
		return "", false
	}
	tlen := samr.TempLen
	if tlen < 0 {
		tlen = -tlen
	}
	return strconv.Itoa((tlen / insertLengthBucket) * insertLengthBucket), true
}

type gcContentStratifier struct{}

func (gcContentStratifier) Name() string   { return "GC_CONTENT" }
func (gcContentStratifier) Suffix() string { return "gc" }
func (gcContentStratifier) Stratify(_ BaseObservation, ctx *LocusContext) (string, bool) {
	start := int(ctx.Pos) - gcWindow
	if start < 0 {
		start = 0
	}
	end := int(ctx.Pos) + gcWindow + 1
	if end > len(ctx.RefSeq) {
		end = len(ctx.RefSeq)
	}
	if start >= end {
		return "", false
	}
	gc := 0
	for i := start; i < end; i++ {
		if c := ctx.RefSeq[i]; c == 'G' || c == 'C' {
			gc++
		}
	}
	pct := (gc*100 + (end-start)/2) / (end - start)
	return strconv.Itoa(pct), true
}

type readDirectionStratifier struct{}

func (readDirectionStratifier) Name() string   { return "READ_DIRECTION" }
func (readDirectionStratifier) Suffix() string { return "read_direction" }
func (readDirectionStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	if obs.Record.Flags&sam.Reverse != 0 {
		return "R", true
	}
	return "F", true
}

type pairOrientationStratifier struct{}

func (pairOrientationStratifier) Name() string   { return "PAIR_ORIENTATION" }
func (pairOrientationStratifier) Suffix() string { return "pair_orientation" }
func (pairOrientationStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	samr := obs.Record
	if samr.Flags&sam.Paired == 0 || samr.Flags&sam.MateUnmapped != 0 || samr.Ref != samr.MateRef {
		return "", false
	}
	var selfNum, mateNum byte
	switch Ordinality(samr) {
	case OrdinalityFirst:
		selfNum, mateNum = '1', '2'
	case OrdinalitySecond:
		selfNum, mateNum = '2', '1'
	default:
		return "", false
	}
	selfDir, mateDir := byte('F'), byte('F')
	if samr.Flags&sam.Reverse != 0 {
		selfDir = 'R'
	}
	if samr.Flags&sam.MateReverse != 0 {
		mateDir = 'R'
	}
	return string([]byte{selfDir, selfNum, mateDir, mateNum}), true
}

// refHomopolymerLen returns the length of the reference homopolymer run
// ending immediately before the locus.
func refHomopolymerLen(ctx *LocusContext) int {
	i := int(ctx.Pos) - 1
	if i < 0 || i >= len(ctx.RefSeq) {
		return 0
	}
	run := ctx.RefSeq[i]
	n := 0
	for ; i >= 0 && ctx.RefSeq[i] == run; i-- {
		n++
	}
	return n
}

type homopolymerStratifier struct{}

func (homopolymerStratifier) Name() string   { return "HOMOPOLYMER" }
func (homopolymerStratifier) Suffix() string { return "homopolymer_length" }
func (homopolymerStratifier) Stratify(_ BaseObservation, ctx *LocusContext) (string, bool) {
	return strconv.Itoa(refHomopolymerLen(ctx)), true
}

type binnedHomopolymerStratifier struct {
	long int
}

func (binnedHomopolymerStratifier) Name() string   { return "BINNED_HOMOPOLYMER" }
func (binnedHomopolymerStratifier) Suffix() string { return "binned_homopolymer" }
func (s binnedHomopolymerStratifier) Stratify(_ BaseObservation, ctx *LocusContext) (string, bool) {
	if refHomopolymerLen(ctx) < s.long {
		return "SHORT_HOMOPOLYMER", true
	}
	return "LONG_HOMOPOLYMER", true
}

type cycleStratifier struct{}

func (cycleStratifier) Name() string   { return "CYCLE" }
func (cycleStratifier) Suffix() string { return "cycle" }
func (cycleStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	readLen := obs.ReadLen()
	if readLen == 0 || obs.Offset >= readLen {
		return "", false
	}
	// Cycle counts from the 5' end of the read as sequenced.
	cycle := obs.Offset + 1
	if obs.Record.Flags&sam.Reverse != 0 {
		cycle = readLen - obs.Offset
	}
	return strconv.Itoa(cycle), true
}

type readOrdinalityStratifier struct{}

func (readOrdinalityStratifier) Name() string   { return "READ_ORDINALITY" }
func (readOrdinalityStratifier) Suffix() string { return "read_ordinality" }
func (readOrdinalityStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	switch Ordinality(obs.Record) {
	case OrdinalityFirst:
		return "FIRST", true
	case OrdinalitySecond:
		return "SECOND", true
	}
	return "UNKNOWN", true
}

type mappingQualityStratifier struct{}

func (mappingQualityStratifier) Name() string   { return "MAPPING_QUALITY" }
func (mappingQualityStratifier) Suffix() string { return "mapping_quality" }
func (mappingQualityStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	return strconv.Itoa(int(obs.Record.MapQ)), true
}

type readGroupStratifier struct{}

func (readGroupStratifier) Name() string   { return "READ_GROUP" }
func (readGroupStratifier) Suffix() string { return "read_group" }
func (readGroupStratifier) Stratify(obs BaseObservation, _ *LocusContext) (string, bool) {
	if rg := obs.ReadGroup(); rg != "" {
		return rg, true
	}
	return "unknown", true
}

var nmTag = sam.Tag{'N', 'M'}

type mismatchesInReadStratifier struct{}

func (mismatchesInReadStratifier) Name() string   { return "MISMATCHES_IN_READ" }
func (mismatchesInReadStratifier) Suffix() string { return "mismatches_in_read" }
func (mismatchesInReadStratifier) Stratify(obs BaseObservation, ctx *LocusContext) (string, bool) {
	aux := obs.Record.AuxFields.Get(nmTag)
	if aux == nil {
		return "", false
	}
	var nm int
	switch v := aux.Value().(type) {
	case int:
		nm = v
	case int8:
		nm = int(v)
	case int16:
		nm = int(v)
	case int32:
		nm = int(v)
	case uint8:
		nm = int(v)
	case uint16:
		nm = int(v)
	case uint32:
		nm = int(v)
	default:
		return "", false
	}
	// NM includes indel bases; subtract them so only substitutions remain.
	for _, op := range obs.Record.Cigar {
		switch op.Type() {
		case sam.CigarInsertion, sam.CigarDeletion:
			nm -= op.Len()
		}
	}
	// Exclude the current base's own mismatch from its stratum.
	if obs.Type == AlignMatch {
		if base, ok := obs.Base(); ok && base != ctx.RefBase {
			nm--
		}
	}
	if nm < 0 {
		nm = 0
	}
	return strconv.Itoa(nm), true
}

var complementTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 'N'
	}
	t['A'], t['C'], t['G'], t['T'] = 'T', 'G', 'C', 'A'
	return t
}()

type oneBasePaddedContextStratifier struct{}

func (oneBasePaddedContextStratifier) Name() string   { return "ONE_BASE_PADDED_CONTEXT" }
func (oneBasePaddedContextStratifier) Suffix() string { return "context" }
func (oneBasePaddedContextStratifier) Stratify(obs BaseObservation, ctx *LocusContext) (string, bool) {
	pos := int(ctx.Pos)
	if pos < 1 || pos+2 > len(ctx.RefSeq) {
		return "", false
	}
	fwd := ctx.RefSeq[pos-1 : pos+2]
	for i := 0; i < 3; i++ {
		switch fwd[i] {
		case 'A', 'C', 'G', 'T':
		default:
			return "", false
		}
	}
	if obs.Record.Flags&sam.Reverse == 0 {
		return fwd, true
	}
	// Reverse-strand reads observe the complementary strand.
	rc := []byte{complementTable[fwd[2]], complementTable[fwd[1]], complementTable[fwd[0]]}
	return string(rc), true
}

type stratifierEntry struct {
	name string
	make func(opts StratifierOpts) Stratifier
}

// stratifierRegistry enumerates every named stratifier kind.  Order here is
// the order reported by StratifierNames.
var stratifierRegistry = []stratifierEntry{
	{"BASE_QUALITY", func(StratifierOpts) Stratifier { return baseQualityStratifier{} }},
	{"INSERT_LENGTH", func(StratifierOpts) Stratifier { return insertLengthStratifier{} }},
	{"GC_CONTENT", func(StratifierOpts) Stratifier { return gcContentStratifier{} }},
	{"READ_DIRECTION", func(StratifierOpts) Stratifier { return readDirectionStratifier{} }},
	{"PAIR_ORIENTATION", func(StratifierOpts) Stratifier { return pairOrientationStratifier{} }},
	{"HOMOPOLYMER", func(StratifierOpts) Stratifier { return homopolymerStratifier{} }},
	{"BINNED_HOMOPOLYMER", func(opts StratifierOpts) Stratifier {
		return binnedHomopolymerStratifier{long: opts.LongHomopolymer}
	}},
	{"CYCLE", func(StratifierOpts) Stratifier { return cycleStratifier{} }},
	{"READ_ORDINALITY", func(StratifierOpts) Stratifier { return readOrdinalityStratifier{} }},
	{"MAPPING_QUALITY", func(StratifierOpts) Stratifier { return mappingQualityStratifier{} }},
	{"READ_GROUP", func(StratifierOpts) Stratifier { return readGroupStratifier{} }},
	{"MISMATCHES_IN_READ", func(StratifierOpts) Stratifier { return mismatchesInReadStratifier{} }},
	{"ONE_BASE_PADDED_CONTEXT", func(StratifierOpts) Stratifier { return oneBasePaddedContextStratifier{} }},
}

func stratifierByName(name string, opts StratifierOpts) (Stratifier, bool) {
	for _, e := range stratifierRegistry {
		if e.name == name {
			return e.make(opts), true
		}
	}
	return nil, false
}

// StratifierNames returns the directive tokens of every registered
// stratifier kind, for help/introspection output.
func StratifierNames() []string {
	names := make([]string, len(stratifierRegistry))
	for i, e := range stratifierRegistry {
		names[i] = e.name
	}
	return names
}
