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
	"github.com/grailbio/hts/sam"
)

// DeletionTracker prevents double-counting of deletion observations.  The
// locus source replays a multi-base deletion once per covered position, so
// the deletion must be credited to exactly the first position its record is
// seen at.
//
// State is bounded: whenever the tracker moves to a new locus, every record
// last seen more than one position away is evicted, so the map only ever
// holds records touching a narrow positional window.  Correctness depends
// on loci arriving in ascending order.
type DeletionTracker struct {
	current    Locus
	hasCurrent bool
	seen       map[*sam.Record]Locus
}

// NewDeletionTracker returns an empty tracker.
func NewDeletionTracker() *DeletionTracker {
	return &DeletionTracker{seen: make(map[*sam.Record]Locus)}
}

// SeenBefore reports whether samr's deletion has already been accounted at
// a previous locus, marking it as seen at locus either way.
func (t *DeletionTracker) SeenBefore(samr *sam.Record, locus Locus) bool {
	if !t.hasCurrent {
		t.current = locus
		t.hasCurrent = true
	} else if !t.current.WithinDistance(locus, 0) {
		t.current = locus
		for rec, last := range t.seen {
			if !last.WithinDistance(t.current, 1) {
				delete(t.seen, rec)
			}
		}
	}
	_, dup := t.seen[samr]
	t.seen[samr] = t.current
	return dup
}

// Len returns the number of records currently tracked.
func (t *DeletionTracker) Len() int { return len(t.seen) }
