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

// Package vcfknown indexes the known polymorphic sites of a VCF and answers
// per-locus overlap queries for the error-collection pipeline.  Only
// non-filtered records (FILTER of PASS or ".") are indexed: a locus covered
// solely by filtered records does not overlap.
package vcfknown

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/file"
	"github.com/grailbio/errstats"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// site is one known-variant reference span, 0-based half-open.
type site struct {
	start, end int
	id         uintptr
}

func (s site) Overlap(b interval.IntRange) bool { return s.start < b.End && s.end > b.Start }
func (s site) Range() interval.IntRange         { return interval.IntRange{Start: s.start, End: s.end} }
func (s site) ID() uintptr                      { return s.id }

// Index holds a per-contig interval tree of non-filtered known variants.
// It implements errstats.VariantOracle.
type Index struct {
	byRef    map[string]*interval.IntTree
	numSites int
}

// NumSites returns the number of indexed variant records.
func (x *Index) NumSites() int { return x.numSites }

// Overlaps reports whether any indexed variant covers the locus.
func (x *Index) Overlaps(locus errstats.Locus) bool {
	if locus.Ref == nil {
		return false
	}
	tree := x.byRef[locus.Ref.Name()]
	if tree == nil {
		return false
	}
	q := site{start: int(locus.Pos), end: int(locus.Pos) + 1}
	return len(tree.Get(q)) > 0
}

// Load reads a VCF (gzipped iff the path ends in .gz or .bgz) and builds
// the overlap index.  A garbled file is a fatal input error; no partial
// index is returned.
func Load(ctx context.Context, path string) (x *Index, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, infile, &err)

	var r io.Reader = infile.Reader(ctx)
	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".bgz") {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(r); err != nil {
			return nil, errors.Wrapf(err, "vcfknown: %s", path)
		}
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		r = gz
	}
	if x, err = New(r); err != nil {
		return nil, errors.Wrapf(err, "vcfknown: %s", path)
	}
	return x, nil
}

// New builds the overlap index from VCF text.
func New(r io.Reader) (*Index, error) {
	x := &Index{byRef: make(map[string]*interval.IntTree)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<22)
	lineNo := 0
	var nextID uintptr
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.SplitN(line, "\t", 9)
		if len(fields) < 7 {
			return nil, errors.Errorf("line %d: %d fields, need at least 7 (CHROM..FILTER)", lineNo, len(fields))
		}
		if filter := fields[6]; filter != "PASS" && filter != "." {
			continue
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil || pos < 1 {
			return nil, errors.Errorf("line %d: bad POS %q", lineNo, fields[1])
		}
		ref := fields[3]
		if ref == "" {
			return nil, errors.Errorf("line %d: empty REF", lineNo)
		}
		chrom := fields[0]
		tree := x.byRef[chrom]
		if tree == nil {
			tree = &interval.IntTree{}
			x.byRef[chrom] = tree
		}
		// VCF POS is 1-based; the variant spans len(REF) reference bases.
		s := site{start: pos - 1, end: pos - 1 + len(ref), id: nextID}
		nextID++
		if err := tree.Insert(s, true); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		x.numSites++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for _, tree := range x.byRef {
		tree.AdjustRanges()
	}
	return x, nil
}
