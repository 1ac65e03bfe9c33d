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
package locusiter

import (
	"strings"
	"testing"

	"github.com/grailbio/errstats"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

type sliceRecIter struct {
	recs   []*sam.Record
	i      int
	closed bool
}

func (s *sliceRecIter) Scan() bool {
	if s.i >= len(s.recs) {
		return false
	}
	s.i++
	return true
}

func (s *sliceRecIter) Record() *sam.Record { return s.recs[s.i-1] }
func (s *sliceRecIter) Close() error {
	s.closed = true
	return nil
}

var (
	testRef1, testRef2 *sam.Reference
	testRefSeqs        []string
)

func init() {
	testRef1, _ = sam.NewReference("chr1", "", "", 1000, nil, nil)
	testRef2, _ = sam.NewReference("chr2", "", "", 1000, nil, nil)
	if _, err := sam.NewHeader(nil, []*sam.Reference{testRef1, testRef2}); err != nil {
		panic(err)
	}
	testRefSeqs = []string{
		strings.Repeat("ACGT", 250),
		strings.Repeat("TTTT", 250),
	}
}

func newRecord(name string, ref *sam.Reference, pos int, seq string, cigar []sam.CigarOp) *sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	return &sam.Record{
		Name:  name,
		Ref:   ref,
		Pos:   pos,
		MapQ:  60,
		Cigar: cigar,
		Seq:   sam.NewSeq([]byte(seq)),
		Qual:  qual,
	}
}

func drain(t *testing.T, it *Iterator) []*errstats.LocusContext {
	var got []*errstats.LocusContext
	for it.Scan() {
		got = append(got, it.Context())
	}
	assert.NoError(t, it.Close())
	return got
}

func TestAlignedEmission(t *testing.T) {
	r1 := newRecord("r1", testRef1, 10, "ACGT",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)})
	r2 := newRecord("r2", testRef1, 12, "GTAC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)})
	it := newWithRecords(&sliceRecIter{recs: []*sam.Record{r1, r2}}, testRefSeqs, DefaultOpts)

	got := drain(t, it)
	assert.EQ(t, len(got), 6) // positions 10..15
	for i, ctx := range got {
		expect.EQ(t, ctx.Pos, errstats.PosType(10+i))
		expect.EQ(t, ctx.Ref.Name(), "chr1")
		expect.EQ(t, ctx.RefBase, testRefSeqs[0][10+i])
	}
	// Both reads cover 12 and 13.
	expect.EQ(t, len(got[0].Aligned), 1)
	expect.EQ(t, len(got[2].Aligned), 2)
	expect.EQ(t, len(got[3].Aligned), 2)
	expect.EQ(t, len(got[5].Aligned), 1)

	base, ok := got[2].Aligned[0].Base()
	assert.True(t, ok)
	expect.EQ(t, base, byte('G')) // r1 offset 2
	base, ok = got[2].Aligned[1].Base()
	assert.True(t, ok)
	expect.EQ(t, base, byte('G')) // r2 offset 0
}

func TestDeletionReplay(t *testing.T) {
	// 2M3D2M: deletion covers positions 12..14, anchored at read offset 1.
	r := newRecord("del", testRef1, 10, "ACGT", []sam.CigarOp{
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarDeletion, 3),
		sam.NewCigarOp(sam.CigarMatch, 2),
	})
	it := newWithRecords(&sliceRecIter{recs: []*sam.Record{r}}, testRefSeqs, DefaultOpts)

	got := drain(t, it)
	assert.EQ(t, len(got), 7) // positions 10..16
	for i := 2; i <= 4; i++ {
		assert.EQ(t, len(got[i].Deleted), 1, "pos=%d", 10+i)
		expect.EQ(t, got[i].Deleted[0].Offset, 1)
		expect.EQ(t, len(got[i].Aligned), 0)
	}
	// The aligned bases resume past the deletion.
	expect.EQ(t, len(got[5].Aligned), 1)
	expect.EQ(t, got[5].Aligned[0].Offset, 2)
}

func TestInsertionAnchor(t *testing.T) {
	// 2M2I2M: insertion anchored at position 11, the last aligned base
	// before it.
	r := newRecord("ins", testRef1, 10, "ACGTAC", []sam.CigarOp{
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarInsertion, 2),
		sam.NewCigarOp(sam.CigarMatch, 2),
	})
	it := newWithRecords(&sliceRecIter{recs: []*sam.Record{r}}, testRefSeqs, DefaultOpts)

	got := drain(t, it)
	assert.EQ(t, len(got), 4) // positions 10..13
	expect.EQ(t, len(got[1].Inserted), 1)
	expect.EQ(t, got[1].Inserted[0].Offset, 2)
	expect.EQ(t, len(got[0].Inserted), 0)

	// An insertion before any aligned base has no anchor.
	lead := newRecord("lead", testRef1, 20, "ACGT", []sam.CigarOp{
		sam.NewCigarOp(sam.CigarInsertion, 2),
		sam.NewCigarOp(sam.CigarMatch, 2),
	})
	it = newWithRecords(&sliceRecIter{recs: []*sam.Record{lead}}, testRefSeqs, DefaultOpts)
	for _, ctx := range drain(t, it) {
		expect.EQ(t, len(ctx.Inserted), 0)
	}
}

func TestBaseQualityFilter(t *testing.T) {
	r := newRecord("q", testRef1, 10, "ACGT",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)})
	r.Qual[1] = 10
	it := newWithRecords(&sliceRecIter{recs: []*sam.Record{r}}, testRefSeqs, DefaultOpts)

	got := drain(t, it)
	// The low-quality base is dropped but its locus is still emitted.
	assert.EQ(t, len(got), 4)
	expect.EQ(t, len(got[0].Aligned), 1)
	expect.EQ(t, len(got[1].Aligned), 0)
	expect.EQ(t, len(got[2].Aligned), 1)
}

func TestRecordFilters(t *testing.T) {
	ok := newRecord("ok", testRef1, 10, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	lowMapq := newRecord("lowmapq", testRef1, 10, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	lowMapq.MapQ = 5
	dup := newRecord("dup", testRef1, 10, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	dup.Flags |= sam.Duplicate
	unmapped := newRecord("unmapped", testRef1, 10, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	unmapped.Flags |= sam.Unmapped

	it := newWithRecords(&sliceRecIter{
		recs: []*sam.Record{ok, lowMapq, dup, unmapped}}, testRefSeqs, DefaultOpts)
	got := drain(t, it)
	assert.EQ(t, len(got), 2)
	expect.EQ(t, len(got[0].Aligned), 1)
	expect.EQ(t, len(got[1].Aligned), 1)
}

func TestReferenceChange(t *testing.T) {
	r1 := newRecord("r1", testRef1, 500, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	r2 := newRecord("r2", testRef2, 10, "TT",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	it := newWithRecords(&sliceRecIter{recs: []*sam.Record{r1, r2}}, testRefSeqs, DefaultOpts)

	got := drain(t, it)
	assert.EQ(t, len(got), 4)
	expect.EQ(t, got[0].Ref.Name(), "chr1")
	expect.EQ(t, got[1].Ref.Name(), "chr1")
	expect.EQ(t, got[2].Ref.Name(), "chr2")
	expect.EQ(t, got[2].Pos, errstats.PosType(10))
	expect.EQ(t, got[2].RefBase, byte('T'))
}

func TestUnsortedInput(t *testing.T) {
	r1 := newRecord("r1", testRef1, 500, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	r2 := newRecord("r2", testRef1, 10, "AC",
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 2)})
	it := newWithRecords(&sliceRecIter{recs: []*sam.Record{r1, r2}}, testRefSeqs, DefaultOpts)

	for it.Scan() {
	}
	err := it.Close()
	assert.NotNil(t, err)
	assert.HasSubstr(t, err.Error(), "not coordinate sorted")
}

func TestCloseReleasesSource(t *testing.T) {
	recs := &sliceRecIter{}
	it := newWithRecords(recs, testRefSeqs, DefaultOpts)
	expect.False(t, it.Scan())
	assert.NoError(t, it.Close())
	expect.True(t, recs.closed)
}
