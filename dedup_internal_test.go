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
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestDeletionTrackerReplay(t *testing.T) {
	ref := mustRef(t, "chr1", 1000)
	samr := testRecord("del", ref, 100, "ACGT", 0)

	tracker := NewDeletionTracker()
	// A 4-base deletion replayed at consecutive positions is credited once.
	expect.False(t, tracker.SeenBefore(samr, Locus{Ref: ref, Pos: 100}))
	expect.True(t, tracker.SeenBefore(samr, Locus{Ref: ref, Pos: 100}))
	expect.True(t, tracker.SeenBefore(samr, Locus{Ref: ref, Pos: 101}))
	expect.True(t, tracker.SeenBefore(samr, Locus{Ref: ref, Pos: 102}))
	expect.True(t, tracker.SeenBefore(samr, Locus{Ref: ref, Pos: 103}))
}

func TestDeletionTrackerEviction(t *testing.T) {
	ref := mustRef(t, "chr1", 1000)
	tracker := NewDeletionTracker()

	r1 := testRecord("r1", ref, 100, "ACGT", 0)
	expect.False(t, tracker.SeenBefore(r1, Locus{Ref: ref, Pos: 100}))
	expect.EQ(t, tracker.Len(), 1)

	// Moving far past r1 evicts it; seeing it again counts as new.
	r2 := testRecord("r2", ref, 200, "ACGT", 0)
	expect.False(t, tracker.SeenBefore(r2, Locus{Ref: ref, Pos: 200}))
	expect.EQ(t, tracker.Len(), 1)
	expect.False(t, tracker.SeenBefore(r1, Locus{Ref: ref, Pos: 200}))

	// Records within one position of the current locus survive eviction.
	r3 := testRecord("r3", ref, 201, "ACGT", 0)
	expect.False(t, tracker.SeenBefore(r3, Locus{Ref: ref, Pos: 201}))
	expect.True(t, tracker.SeenBefore(r2, Locus{Ref: ref, Pos: 201}))
}

func TestDeletionTrackerRefChange(t *testing.T) {
	ref1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	assert.NoError(t, err)
	ref2, err := sam.NewReference("chr2", "", "", 1000, nil, nil)
	assert.NoError(t, err)
	// One header so the references get distinct IDs.
	_, err = sam.NewHeader(nil, []*sam.Reference{ref1, ref2})
	assert.NoError(t, err)
	tracker := NewDeletionTracker()

	samr := testRecord("r", ref1, 100, "ACGT", 0)
	expect.False(t, tracker.SeenBefore(samr, Locus{Ref: ref1, Pos: 100}))
	// Same position on another reference is a different locus.
	expect.False(t, tracker.SeenBefore(samr, Locus{Ref: ref2, Pos: 100}))
}
