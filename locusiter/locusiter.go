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

// Package locusiter turns a coordinate-sorted BAM/PAM plus in-memory
// reference sequences into an ascending stream of per-locus base
// observations (aligned, deleted, and inserted), the shape consumed by the
// errstats pipeline.  Multi-base deletions are replayed at every covered
// position; the pipeline's deduplicator credits them to one.
package locusiter

import (
	"fmt"
	"sort"

	gbam "github.com/grailbio/bio/encoding/bam"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/bio/interval"
	"github.com/grailbio/errstats"
	"github.com/grailbio/hts/sam"
)

type Opts struct {
	// Commandline options.
	MinMappingQual int
	MinBaseQual    int
	FlagExclude    int
	// Bed, when non-nil, restricts emitted loci to the given
	// (pre-intersected) interval union.
	Bed *interval.BEDUnion
}

var DefaultOpts = Opts{
	MinMappingQual: 20,
	MinBaseQual:    20,
	FlagExclude:    0xf00,
}

// recordIter is the slice of bamprovider.Iterator this package needs;
// narrowed for testability.
type recordIter interface {
	Scan() bool
	Record() *sam.Record
	Close() error
}

// pendingLocus accumulates observations for one not-yet-final position.
type pendingLocus struct {
	aligned  []errstats.BaseObservation
	deleted  []errstats.BaseObservation
	inserted []errstats.BaseObservation
}

// Iterator implements errstats.LocusSource.
type Iterator struct {
	recs    recordIter
	refSeqs []string
	opts    Opts

	ref     *sam.Reference
	lastPos errstats.PosType
	pending map[errstats.PosType]*pendingLocus

	queue []*errstats.LocusContext
	cur   *errstats.LocusContext
	done  bool
	err   error
}

// New returns an iterator over every mapped record in provider.  refSeqs
// holds the uppercase reference sequence per reference ID (the
// pileup.FaToStringSlice layout).
func New(provider bamprovider.Provider, refSeqs []string, opts Opts) (*Iterator, error) {
	header, err := provider.GetHeader()
	if err != nil {
		return nil, err
	}
	return newWithRecords(provider.NewIterator(gbam.UniversalShard(header)), refSeqs, opts), nil
}

func newWithRecords(recs recordIter, refSeqs []string, opts Opts) *Iterator {
	return &Iterator{
		recs:    recs,
		refSeqs: refSeqs,
		opts:    opts,
		pending: make(map[errstats.PosType]*pendingLocus),
	}
}

// Scan implements errstats.LocusSource.
func (it *Iterator) Scan() bool {
	for {
		if len(it.queue) > 0 {
			it.cur = it.queue[0]
			it.queue = it.queue[1:]
			return true
		}
		if it.done || it.err != nil {
			return false
		}
		if !it.recs.Scan() {
			it.done = true
			it.flushBefore(errstats.PosTypeMax)
			continue
		}
		samr := it.recs.Record()
		if it.skip(samr) {
			continue
		}
		if samr.Ref != it.ref {
			it.flushBefore(errstats.PosTypeMax)
			it.ref = samr.Ref
			it.lastPos = 0
		} else if errstats.PosType(samr.Pos) < it.lastPos {
			it.err = fmt.Errorf("locusiter: input not coordinate sorted: %s:%d after %s:%d",
				samr.Ref.Name(), samr.Pos+1, it.ref.Name(), it.lastPos+1)
			return false
		}
		it.lastPos = errstats.PosType(samr.Pos)
		it.flushBefore(it.lastPos)
		it.addRecord(samr)
	}
}

// Context implements errstats.LocusSource.
func (it *Iterator) Context() *errstats.LocusContext { return it.cur }

// Close implements errstats.LocusSource.
func (it *Iterator) Close() error {
	if err := it.recs.Close(); err != nil && it.err == nil {
		it.err = err
	}
	return it.err
}

func (it *Iterator) skip(samr *sam.Record) bool {
	if samr.Ref == nil || samr.Flags&sam.Unmapped != 0 {
		return true
	}
	if samr.Flags&sam.Flags(it.opts.FlagExclude) != 0 {
		return true
	}
	return int(samr.MapQ) < it.opts.MinMappingQual
}

func (it *Iterator) locus(pos errstats.PosType) *pendingLocus {
	p := it.pending[pos]
	if p == nil {
		p = &pendingLocus{}
		it.pending[pos] = p
	}
	return p
}

// addRecord walks samr's CIGAR and distributes its bases over the pending
// loci.
func (it *Iterator) addRecord(samr *sam.Record) {
	refPos := errstats.PosType(samr.Pos)
	readOff := 0
	for _, co := range samr.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				p := it.locus(refPos + errstats.PosType(i))
				off := readOff + i
				if len(samr.Qual) == 0 || int(samr.Qual[off]) >= it.opts.MinBaseQual {
					p.aligned = append(p.aligned, errstats.BaseObservation{
						Record: samr, Offset: off, Type: errstats.AlignMatch})
				}
			}
			refPos += errstats.PosType(n)
			readOff += n
		case sam.CigarInsertion:
			// The insertion event is anchored at the preceding reference
			// base; an insertion before the first aligned base has no
			// anchor and is dropped.
			if refPos > errstats.PosType(samr.Pos) {
				p := it.locus(refPos - 1)
				p.inserted = append(p.inserted, errstats.BaseObservation{
					Record: samr, Offset: readOff, Type: errstats.AlignInsertion})
			}
			readOff += n
		case sam.CigarDeletion:
			off := readOff - 1
			if off < 0 {
				off = 0
			}
			for i := 0; i < n; i++ {
				p := it.locus(refPos + errstats.PosType(i))
				p.deleted = append(p.deleted, errstats.BaseObservation{
					Record: samr, Offset: off, Type: errstats.AlignDeletion})
			}
			refPos += errstats.PosType(n)
		case sam.CigarSkipped:
			refPos += errstats.PosType(n)
		case sam.CigarSoftClipped:
			readOff += n
		}
	}
}

// flushBefore moves every pending locus with position < bound onto the
// ready queue, in ascending order, applying the optional region
// restriction.
func (it *Iterator) flushBefore(bound errstats.PosType) {
	if len(it.pending) == 0 {
		return
	}
	positions := make([]errstats.PosType, 0, len(it.pending))
	for pos := range it.pending {
		if pos < bound {
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for _, pos := range positions {
		p := it.pending[pos]
		delete(it.pending, pos)
		if it.opts.Bed != nil && !it.opts.Bed.ContainsByID(it.ref.ID(), interval.PosType(pos)) {
			continue
		}
		it.queue = append(it.queue, it.makeContext(pos, p))
	}
}

func (it *Iterator) makeContext(pos errstats.PosType, p *pendingLocus) *errstats.LocusContext {
	var refSeq string
	if id := it.ref.ID(); id >= 0 && id < len(it.refSeqs) {
		refSeq = it.refSeqs[id]
	}
	refBase := byte('N')
	if int(pos) < len(refSeq) {
		refBase = refSeq[pos]
	}
	return &errstats.LocusContext{
		Locus:    errstats.Locus{Ref: it.ref, Pos: pos},
		RefBase:  refBase,
		RefSeq:   refSeq,
		Aligned:  p.aligned,
		Deleted:  p.deleted,
		Inserted: p.inserted,
	}
}
