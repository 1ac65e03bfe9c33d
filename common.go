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

	"github.com/grailbio/bio/interval"
	"github.com/grailbio/bio/pileup"
	"github.com/grailbio/hts/sam"
)

// Package errstats computes empirical sequencing-error rates from aligned
// bases, stratified along arbitrary combinations of per-base attributes
// (base quality, cycle, GC content, homopolymer context, ...).  Differences
// from the reference are assumed to be errors; the caller is responsible for
// excluding known-polymorphic sites (see the vcfknown subpackage).

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = interval.PosTypeMax

// AlignmentType distinguishes the three kinds of base observation a locus
// can carry.
type AlignmentType int

const (
	// AlignMatch is a read base aligned to the reference base at the locus.
	// (The base may still mismatch; "match" refers to the alignment, not the
	// sequence.)
	AlignMatch AlignmentType = iota
	// AlignInsertion is an insertion event anchored at the locus.
	AlignInsertion
	// AlignDeletion is a deletion event covering the locus.  A multi-base
	// deletion yields one AlignDeletion observation per covered locus; the
	// deduplicator in the pipeline credits it to exactly one of them.
	AlignDeletion
)

// ReadOrdinality says whether a read is the first or second of its pair.
type ReadOrdinality int

const (
	// OrdinalityUnknown is the sentinel for unpaired reads.
	OrdinalityUnknown ReadOrdinality = iota
	// OrdinalityFirst marks the first read of a pair.
	OrdinalityFirst
	// OrdinalitySecond marks the second read of a pair.
	OrdinalitySecond
)

// Ordinality classifies samr within its read-pair.
func Ordinality(samr *sam.Record) ReadOrdinality {
	if samr.Flags&sam.Paired == 0 {
		return OrdinalityUnknown
	}
	switch samr.Flags & (sam.Read1 | sam.Read2) {
	case sam.Read1:
		return OrdinalityFirst
	case sam.Read2:
		return OrdinalitySecond
	}
	return OrdinalityUnknown
}

// Locus is a single 0-based genomic coordinate.
type Locus struct {
	Ref *sam.Reference
	Pos PosType
}

// WithinDistance returns whether other is on the same reference and within
// dist positions of l.
func (l Locus) WithinDistance(other Locus, dist PosType) bool {
	if l.Ref == nil || other.Ref == nil || l.Ref.ID() != other.Ref.ID() {
		return false
	}
	diff := l.Pos - other.Pos
	if diff < 0 {
		diff = -diff
	}
	return diff <= dist
}

// String renders the locus with the usual 1-based text convention.
func (l Locus) String() string {
	if l.Ref == nil {
		return fmt.Sprintf("?:%d", l.Pos+1)
	}
	return fmt.Sprintf("%s:%d", l.Ref.Name(), l.Pos+1)
}

// BaseObservation is one aligned, inserted, or deleted base at a locus.  It
// is transient: produced by the locus source, consumed immediately by the
// aggregations, never retained.
type BaseObservation struct {
	// Record is the owning alignment record.
	Record *sam.Record
	// Offset is the 0-based offset within Record's read bases.  For
	// AlignDeletion it is the offset of the last read base before the
	// deleted segment; for AlignInsertion, the offset of the first inserted
	// base.
	Offset int
	// Type is the alignment type of the observation.
	Type AlignmentType
}

// Base returns the observed read base in ASCII (A/C/G/T/N...).  ok is false
// for deletion observations, which carry no base.
func (o BaseObservation) Base() (base byte, ok bool) {
	if o.Type == AlignDeletion {
		return 0, false
	}
	nibblePair := byte(o.Record.Seq.Seq[o.Offset>>1])
	if o.Offset&1 == 0 {
		nibblePair >>= 4
	}
	return pileup.Seq8ToASCIITable[nibblePair&0xf], true
}

// Qual returns the observed base quality.  ok is false for deletion
// observations and for records without quality strings.
func (o BaseObservation) Qual() (qual byte, ok bool) {
	if o.Type == AlignDeletion || o.Offset >= len(o.Record.Qual) {
		return 0, false
	}
	return o.Record.Qual[o.Offset], true
}

// ReadLen returns the read length of the owning record.
func (o BaseObservation) ReadLen() int {
	return o.Record.Seq.Length
}

var rgTag = sam.Tag{'R', 'G'}

// ReadGroup returns the RG aux tag of the owning record, or "" if absent.
func (o BaseObservation) ReadGroup() string {
	aux := o.Record.AuxFields.Get(rgTag)
	if aux == nil {
		return ""
	}
	if s, castOk := aux.Value().(string); castOk {
		return s
	}
	return ""
}

// LocusContext is the reference base at one position together with every
// observation at that position.  It is constructed once per locus and
// discarded after all aggregations have consumed it.
type LocusContext struct {
	Locus
	// RefBase is the uppercase ASCII reference base at Pos.
	RefBase byte
	// RefSeq is the full uppercase reference sequence of Ref; stratifiers
	// use it for windowed context (GC, homopolymers, padded context).
	RefSeq string

	// Observations at the locus, by alignment type.
	Aligned  []BaseObservation
	Deleted  []BaseObservation
	Inserted []BaseObservation
}

// MateAt returns the aligned observation belonging to obs's mate read at
// this locus, if the mate also covers the locus.
func (ctx *LocusContext) MateAt(obs BaseObservation) (mate BaseObservation, ok bool) {
	samr := obs.Record
	if samr.Flags&sam.Paired == 0 || samr.Flags&sam.MateUnmapped != 0 {
		return BaseObservation{}, false
	}
	for _, cand := range ctx.Aligned {
		if cand.Record == samr {
			continue
		}
		if cand.Record.Name != samr.Name {
			continue
		}
		// Same template, other end.
		if (cand.Record.Flags^samr.Flags)&(sam.Read1|sam.Read2) != 0 {
			return cand, true
		}
	}
	return BaseObservation{}, false
}
