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
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

// Metrics sink: one TSV artifact per aggregation, named by the
// aggregation's suffix.  Suffix uniqueness is guaranteed by
// BuildAggregations; rows are deterministic (sorted by covariate).

// MetricsPath returns the output path for one aggregation.
func MetricsPath(outPrefix, suffix string, gzipped bool) string {
	path := outPrefix + "." + suffix + ".tsv"
	if gzipped {
		path += ".gz"
	}
	return path
}

// WriteMetricsFiles finalizes every aggregation and writes its metrics
// file.  Files are independent, so they are written in parallel.
func WriteMetricsFiles(ctx context.Context, outPrefix string, aggs []*Aggregation, priorQual int, gzipped bool) error {
	priorErr := ErrorProbFromPhred(priorQual)
	return traverse.Each(len(aggs), func(i int) error {
		agg := aggs[i]
		return writeMetricsFile(ctx, MetricsPath(outPrefix, agg.Suffix(), gzipped), agg, priorErr, gzipped)
	})
}

func writeMetricsFile(ctx context.Context, path string, agg *Aggregation, priorErr float64, gzipped bool) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)

	var w io.Writer = dst.Writer(ctx)
	if gzipped {
		gz := gzip.NewWriter(w)
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = gz
	}
	tsvw := tsv.NewWriter(w)
	if err = agg.templateMetric().WriteHeader(tsvw); err != nil {
		return
	}
	for _, m := range agg.Metrics(priorErr) {
		if err = m.WriteRow(tsvw); err != nil {
			return
		}
	}
	return tsvw.Flush()
}
