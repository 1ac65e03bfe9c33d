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
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/bio/interval"
	"github.com/grailbio/bio/pileup"
	"github.com/grailbio/errstats"
	"github.com/grailbio/errstats/locusiter"
	"github.com/grailbio/errstats/vcfknown"
)

var (
	errorMetrics = flag.String("error-metrics", "", "Comma-separated directives of the form ERROR_TYPE[:STRATIFIER]*; empty selects the standard collection")
	vcfPath      = flag.String("vcf", "", "VCF of known variation for the sample; loci overlapping a non-filtered record are skipped (required)")
	bedPath      = flag.String("bed", "", "Optional BED restricting analysis to the given regions")
	bamIndexPath = flag.String("index", "", "Input BAM index path. Defaults to bampath + .bai")
	mapq         = flag.Int("mapq", errstats.DefaultOpts.MinMappingQual, "Reads with MAPQ below this level are skipped")
	minBaseQual  = flag.Int("min-base-qual", errstats.DefaultOpts.MinBaseQual, "Aligned bases with quality below this level are skipped")
	priorQ       = flag.Int("prior-q", errstats.DefaultOpts.PriorQual, "Phred-scaled prior error probability used when computing empirical rates")
	maxLoci      = flag.Int64("max-loci", errstats.DefaultOpts.MaxLoci, "Maximum number of loci to process; 0 = unlimited")
	longHomopoly = flag.Int("long-homopolymer", errstats.DefaultOpts.LongHomopolymer, "Shortest homopolymer considered long by the BINNED_HOMOPOLYMER stratifier")
	probability  = flag.Float64("probability", errstats.DefaultOpts.Probability, "Probability of selecting a locus for analysis (downsampling)")
	seed         = flag.Int64("seed", errstats.DefaultOpts.Seed, "Downsampling random seed, fixed for reproducibility")
	progress     = flag.Int64("progress-interval", errstats.DefaultOpts.ProgressInterval, "Number of processed loci between progress reports")
	outPrefix    = flag.String("out", "bio-error-metrics", "Output path prefix")
	gzipOut      = flag.Bool("gzip", false, "gzip-compress the output TSVs")
	listNames    = flag.Bool("list-names", false, "Print the available error types and stratifier names, then exit")
)

func bioErrorMetricsUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath fapath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioErrorMetricsUsage
	shutdown := grail.Init()
	defer shutdown()

	if *listNames {
		fmt.Printf("Error types: %s\n", strings.Join(errstats.CalculatorNames(), ", "))
		fmt.Printf("Stratifiers: %s\n", strings.Join(errstats.StratifierNames(), ", "))
		return
	}

	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs != 2 {
		if nPositionalArgs < 2 {
			log.Fatalf("Missing positional arguments (bampath and fapath required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		} else {
			log.Fatalf("Too many positional arguments (only bampath and fapath expected); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		}
	}
	bamPath, faPath := positionalArgs[0], positionalArgs[1]
	if *vcfPath == "" {
		log.Fatalf("-vcf is required")
	}

	opts := errstats.DefaultOpts
	opts.MinMappingQual = *mapq
	opts.MinBaseQual = *minBaseQual
	opts.PriorQual = *priorQ
	opts.MaxLoci = *maxLoci
	opts.LongHomopolymer = *longHomopoly
	opts.Probability = *probability
	opts.Seed = *seed
	opts.ProgressInterval = *progress
	if *errorMetrics == "" {
		opts.Directives = errstats.DefaultDirectives()
	} else {
		opts.Directives = strings.Split(*errorMetrics, ",")
	}
	// All configuration errors surface before any locus is read.
	if err := opts.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	aggs, err := errstats.BuildAggregations(opts.Directives, opts.StratifierOpts())
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("Using %d aggregations", len(aggs))

	ctx := vcontext.Background()

	known, err := vcfknown.Load(ctx, *vcfPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("Indexed %d known variant sites from %s", known.NumSites(), *vcfPath)

	provider := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: *bamIndexPath})
	header, err := provider.GetHeader()
	if err != nil {
		log.Fatalf("%s: %v", bamPath, err)
	}

	fa, err := pileup.LoadFa(ctx, faPath, fasta.CleanASCII)
	if err != nil {
		log.Fatalf("%s: %v", faPath, err)
	}
	refSeqs, err := pileup.FaToStringSlice(fa, header.Refs())
	if err != nil {
		log.Fatalf("%s: %v", faPath, err)
	}

	iterOpts := locusiter.DefaultOpts
	iterOpts.MinMappingQual = opts.MinMappingQual
	iterOpts.MinBaseQual = opts.MinBaseQual
	if *bedPath != "" {
		bed, err := interval.NewBEDUnionFromPath(*bedPath, interval.NewBEDOpts{SAMHeader: header})
		if err != nil {
			log.Fatalf("%s: %v", *bedPath, err)
		}
		iterOpts.Bed = &bed
	}
	src, err := locusiter.New(provider, refSeqs, iterOpts)
	if err != nil {
		log.Fatalf("%s: %v", bamPath, err)
	}

	counts, err := errstats.Collect(src, known, aggs, &opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := provider.Close(); err != nil {
		log.Fatalf("%s: %v", bamPath, err)
	}

	if err := errstats.WriteMetricsFiles(ctx, *outPrefix, aggs, opts.PriorQual, *gzipOut); err != nil {
		log.Fatalf("%v", err)
	}
	errstats.LogSummary(aggs, opts.PriorQual)
	log.Printf("Examined %d loci, Processed %d loci, Skipped %d loci",
		counts.TotalLoci, counts.ProcessedLoci, counts.SkippedLoci)
	log.Debug.Printf("exiting")
}
