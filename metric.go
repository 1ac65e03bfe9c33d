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
	"strconv"

	"github.com/grailbio/base/tsv"
)

// Metric is one finalized, derived-field-computed snapshot of a calculator
// for one stratum.  Immutable once produced (ComputeDerived is called
// exactly once, by the aggregation, before the metric is handed out).
type Metric interface {
	// Base returns the fields shared by all metric types.
	Base() *MetricBase
	// ComputeDerived fills in rate and q-score fields from the raw counts
	// and the linear prior error probability.
	ComputeDerived(priorErr float64)
	// WriteHeader writes this metric type's TSV header row.
	WriteHeader(w *tsv.Writer) error
	// WriteRow writes this metric's TSV data row.
	WriteRow(w *tsv.Writer) error
}

// MetricBase holds the fields common to every metric type.
type MetricBase struct {
	// Covariate is the stratum key in its external form.
	Covariate string
	// TotalBases is the number of observations the stratum's calculator
	// admitted.
	TotalBases int64
}

// Base implements Metric.
func (m *MetricBase) Base() *MetricBase { return m }

func formatRate(rate float64) string {
	if rate == RateUndefined {
		return "."
	}
	return strconv.FormatFloat(rate, 'g', 6, 64)
}

func writeInt64(w *tsv.Writer, v int64) {
	w.WriteString(strconv.FormatInt(v, 10))
}

// SubstitutionErrorMetric reports substitution mismatches against the
// reference.
type SubstitutionErrorMetric struct {
	MetricBase
	// ErrorBases is the number of Match-type bases disagreeing with the
	// reference.
	ErrorBases int64
	// ErrorRate is the shrunk error rate, or RateUndefined for an empty
	// stratum.
	ErrorRate float64
	// QScore is ErrorRate on the phred scale.
	QScore int
}

// ComputeDerived implements Metric.
func (m *SubstitutionErrorMetric) ComputeDerived(priorErr float64) {
	m.ErrorRate = shrunkRate(m.ErrorBases, m.TotalBases, priorErr)
	if m.ErrorRate != RateUndefined {
		m.QScore = PhredFromErrorProb(m.ErrorRate)
	}
}

// WriteHeader implements Metric.
func (m *SubstitutionErrorMetric) WriteHeader(w *tsv.Writer) error {
	w.WriteString("COVARIATE\tTOTAL_BASES\tERROR_BASES\tERROR_RATE\tQ_SCORE")
	return w.EndLine()
}

// WriteRow implements Metric.
func (m *SubstitutionErrorMetric) WriteRow(w *tsv.Writer) error {
	w.WriteString(m.Covariate)
	writeInt64(w, m.TotalBases)
	writeInt64(w, m.ErrorBases)
	w.WriteString(formatRate(m.ErrorRate))
	w.WriteString(strconv.Itoa(m.QScore))
	return w.EndLine()
}

// OverlappingErrorMetric reports disagreement classes for bases whose mate
// read also covers the locus.  Bases without an overlapping mate are
// excluded entirely.
type OverlappingErrorMetric struct {
	MetricBase
	// DisagreesWithRefOnly counts bases mismatching the reference while the
	// mate agrees with the reference.
	DisagreesWithRefOnly int64
	// DisagreesWithRefAgreesWithMate counts bases mismatching the reference
	// identically on both reads of the pair.
	DisagreesWithRefAgreesWithMate int64
	// ThreeWaysDisagreement counts bases where read, mate, and reference
	// are pairwise distinct.
	ThreeWaysDisagreement int64
	// ErrorRate is the conservative shrunk rate, counting only
	// mate-confirmed disagreements.
	ErrorRate float64
	// QScore is ErrorRate on the phred scale.
	QScore int
}

// ComputeDerived implements Metric.
func (m *OverlappingErrorMetric) ComputeDerived(priorErr float64) {
	m.ErrorRate = shrunkRate(m.DisagreesWithRefAgreesWithMate, m.TotalBases, priorErr)
	if m.ErrorRate != RateUndefined {
		m.QScore = PhredFromErrorProb(m.ErrorRate)
	}
}

// WriteHeader implements Metric.
func (m *OverlappingErrorMetric) WriteHeader(w *tsv.Writer) error {
	w.WriteString("COVARIATE\tTOTAL_BASES\tDISAGREES_WITH_REF_ONLY\t" +
		"DISAGREES_WITH_REF_AGREES_WITH_MATE\tTHREE_WAYS_DISAGREEMENT\tERROR_RATE\tQ_SCORE")
	return w.EndLine()
}

// WriteRow implements Metric.
func (m *OverlappingErrorMetric) WriteRow(w *tsv.Writer) error {
	w.WriteString(m.Covariate)
	writeInt64(w, m.TotalBases)
	writeInt64(w, m.DisagreesWithRefOnly)
	writeInt64(w, m.DisagreesWithRefAgreesWithMate)
	writeInt64(w, m.ThreeWaysDisagreement)
	w.WriteString(formatRate(m.ErrorRate))
	w.WriteString(strconv.Itoa(m.QScore))
	return w.EndLine()
}

// IndelErrorMetric reports insertion/deletion events against total aligned
// bases, independent of substitution errors.
type IndelErrorMetric struct {
	MetricBase
	// NumInsertions counts insertion events.
	NumInsertions int64
	// NumDeletions counts deletion events.
	NumDeletions int64
	// IndelRate is the shrunk combined indel rate.
	IndelRate float64
	// QScore is IndelRate on the phred scale.
	QScore int
}

// ComputeDerived implements Metric.
func (m *IndelErrorMetric) ComputeDerived(priorErr float64) {
	m.IndelRate = shrunkRate(m.NumInsertions+m.NumDeletions, m.TotalBases, priorErr)
	if m.IndelRate != RateUndefined {
		m.QScore = PhredFromErrorProb(m.IndelRate)
	}
}

// WriteHeader implements Metric.
func (m *IndelErrorMetric) WriteHeader(w *tsv.Writer) error {
	w.WriteString("COVARIATE\tTOTAL_BASES\tNUM_INSERTIONS\tNUM_DELETIONS\tINDELS_RATE\tQ_SCORE")
	return w.EndLine()
}

// WriteRow implements Metric.
func (m *IndelErrorMetric) WriteRow(w *tsv.Writer) error {
	w.WriteString(m.Covariate)
	writeInt64(w, m.TotalBases)
	writeInt64(w, m.NumInsertions)
	writeInt64(w, m.NumDeletions)
	w.WriteString(formatRate(m.IndelRate))
	w.WriteString(strconv.Itoa(m.QScore))
	return w.EndLine()
}
