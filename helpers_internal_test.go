package errstats

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
)

func mustRef(t *testing.T, name string, length int) *sam.Reference {
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	assert.NoError(t, err)
	// Assigning the reference to a header gives it a real ID.
	_, err = sam.NewHeader(nil, []*sam.Reference{ref})
	assert.NoError(t, err)
	return ref
}

// testRecord builds a fully-aligned record with uniform base quality 30.
func testRecord(name string, ref *sam.Reference, pos int, seq string, flags sam.Flags) *sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Flags:   flags,
		Cigar:   []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(seq))},
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    qual,
	}
}

// testContext builds a single-position locus context over refSeq.
func testContext(ref *sam.Reference, pos PosType, refSeq string, aligned ...BaseObservation) *LocusContext {
	refBase := byte('N')
	if int(pos) < len(refSeq) {
		refBase = refSeq[pos]
	}
	return &LocusContext{
		Locus:   Locus{Ref: ref, Pos: pos},
		RefBase: refBase,
		RefSeq:  refSeq,
		Aligned: aligned,
	}
}
