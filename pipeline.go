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
	"math/rand"

	"github.com/grailbio/base/log"
)

type Opts struct {
	// Commandline options.
	Directives       []string
	MinMappingQual   int
	MinBaseQual      int
	PriorQual        int
	LongHomopolymer  int
	Probability      float64
	MaxLoci          int64
	Seed             int64
	ProgressInterval int64
}

var DefaultOpts = Opts{
	MinMappingQual:   20,
	MinBaseQual:      20,
	PriorQual:        30,
	LongHomopolymer:  DefaultStratifierOpts.LongHomopolymer,
	Probability:      1,
	MaxLoci:          0,
	Seed:             42,
	ProgressInterval: 100000,
}

// Validate rejects out-of-range numeric options.  Called before any locus
// is processed; a failed run is never partially attempted.
func (o *Opts) Validate() error {
	if o.MinMappingQual < 0 {
		return fmt.Errorf("errstats: min mapping quality must be non-negative, got %d", o.MinMappingQual)
	}
	if o.MinBaseQual < 0 {
		return fmt.Errorf("errstats: min base quality must be non-negative, got %d", o.MinBaseQual)
	}
	if o.PriorQual < 2 {
		return fmt.Errorf("errstats: prior error quality must be 2 or more, got %d", o.PriorQual)
	}
	if o.LongHomopolymer < 0 {
		return fmt.Errorf("errstats: long homopolymer threshold must be non-negative, got %d", o.LongHomopolymer)
	}
	if o.Probability < 0 || o.Probability > 1 {
		return fmt.Errorf("errstats: locus sampling probability must be in [0, 1], got %g", o.Probability)
	}
	if o.MaxLoci < 0 {
		return fmt.Errorf("errstats: max loci must be non-negative, got %d", o.MaxLoci)
	}
	return nil
}

// StratifierOpts derives the stratifier tunables from the run options.
func (o *Opts) StratifierOpts() StratifierOpts {
	return StratifierOpts{LongHomopolymer: o.LongHomopolymer}
}

// LocusSource produces locus contexts in ascending genomic order.  The
// pipeline assumes coordinate-ascending delivery; the DeletionTracker's
// eviction policy depends on it.
type LocusSource interface {
	// Scan advances to the next locus, returning false at end of stream or
	// on error.
	Scan() bool
	// Context returns the current locus.  Valid until the next Scan call.
	Context() *LocusContext
	// Close releases resources and returns any error encountered during
	// iteration.
	Close() error
}

// VariantOracle answers whether any non-filtered known-variant record
// overlaps a locus.  Queried once per non-downsampled locus.
type VariantOracle interface {
	Overlaps(locus Locus) bool
}

// Counts are the aggregate pipeline counters, exposed for post-run
// reporting.
type Counts struct {
	// TotalLoci counts loci surviving the downsampling draw.
	TotalLoci int64
	// ProcessedLoci counts loci whose bases were aggregated.
	ProcessedLoci int64
	// SkippedLoci counts loci skipped for overlapping a known variant.
	SkippedLoci int64
}

// Collect streams loci from src through downsampling, variant-overlap
// filtering, and deletion deduplication, dispatching every admitted
// observation to every aggregation.  Single-threaded, single-pass; loci are
// processed one at a time in the order delivered.
func Collect(src LocusSource, oracle VariantOracle, aggs []*Aggregation, opts *Opts) (Counts, error) {
	var counts Counts
	rng := rand.New(rand.NewSource(opts.Seed))
	tracker := NewDeletionTracker()

	for src.Scan() {
		ctx := src.Context()
		// A locus either fully counts or is fully skipped.
		if rng.Float64() > opts.Probability {
			continue
		}
		counts.TotalLoci++

		if oracle != nil && oracle.Overlaps(ctx.Locus) {
			counts.SkippedLoci++
			continue
		}

		addLocusBases(aggs, tracker, ctx)

		counts.ProcessedLoci++
		if opts.ProgressInterval > 0 && counts.ProcessedLoci%opts.ProgressInterval == 0 {
			log.Printf("errstats: processed %d loci (at %s)", counts.ProcessedLoci, ctx.Locus)
		}
		if opts.MaxLoci != 0 && counts.ProcessedLoci >= opts.MaxLoci {
			log.Printf("errstats: stopping early after %d processed loci", counts.ProcessedLoci)
			break
		}
	}
	err := src.Close()
	return counts, err
}

// addLocusBases dispatches every observation at the locus, in the fixed
// aligned/deleted/inserted order, gating deletion observations through the
// tracker first.
func addLocusBases(aggs []*Aggregation, tracker *DeletionTracker, ctx *LocusContext) {
	for _, obs := range ctx.Aligned {
		addObservation(aggs, obs, ctx)
	}
	for _, obs := range ctx.Deleted {
		if tracker.SeenBefore(obs.Record, ctx.Locus) {
			continue
		}
		addObservation(aggs, obs, ctx)
	}
	for _, obs := range ctx.Inserted {
		addObservation(aggs, obs, ctx)
	}
}

func addObservation(aggs []*Aggregation, obs BaseObservation, ctx *LocusContext) {
	for _, agg := range aggs {
		agg.AddBase(obs, ctx)
	}
}
