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

/*
Given a coordinate-sorted BAM, a reference FASTA, and a VCF of known
variation, bio-error-metrics collects empirical sequencing-error rates on
bases stratified in various ways.  Differences from the reference are
assumed to be errors, so loci overlapping a non-filtered known variant are
skipped.

Each requested directive ("ERROR_TYPE[:STRATIFIER]*", e.g.
"ERROR:BASE_QUALITY:GC_CONTENT") produces one TSV whose name is derived
from the output prefix and the directive, e.g.
"<prefix>.error_by_base_quality_and_gc.tsv".  Run with -list-names to see
the available error types and stratifiers.

Sample usage:
bio-error-metrics \
    --vcf known-sites.vcf.gz \
    --bed confident-regions.bed \
    --out output-prefix \
    my.bam \
    ref.fa
*/
package main
