// Package breaker implements the per-job circuit breaker of the ingestion
// pipeline. A breaker is a value object owned by one job's coordinator; it is
// never shared between jobs, so unrelated uploads cannot trip each other.
package breaker

// CircuitBreaker tracks the rolling rejected/processed ratio across a job's
// batches and trips once the ratio exceeds the threshold after a minimum
// sample size. Once tripped it stays tripped for the lifetime of the job.
//
// The breaker is not safe for concurrent use; batches within a job are
// strictly sequential, so no locking is needed.
type CircuitBreaker struct {
	threshold float64
	minSample int

	rowsProcessed int
	rowsRejected  int
	tripped       bool
}

// New creates a CircuitBreaker with the given trip threshold (rejected /
// processed ratio) and minimum processed-row sample size.
func New(threshold float64, minSample int) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		minSample: minSample,
	}
}

// RecordBatchOutcome feeds one batch outcome into the rolling counters.
// A rolled-back batch contributes its full size to the rejected count, since
// none of its rows became durable; a committed batch contributes only the
// rows rejected by validation.
func (b *CircuitBreaker) RecordBatchOutcome(committed bool, errorCount, batchSize int) {
	b.rowsProcessed += batchSize
	if committed {
		b.rowsRejected += errorCount
	} else {
		b.rowsRejected += batchSize
	}

	if b.tripped {
		return
	}
	if b.rowsProcessed < b.minSample {
		return
	}
	if float64(b.rowsRejected)/float64(b.rowsProcessed) > b.threshold {
		b.tripped = true
	}
}

// ShouldAbort reports whether the breaker has tripped. A trip is terminal for
// the job; a new job starts a fresh breaker.
func (b *CircuitBreaker) ShouldAbort() bool {
	return b.tripped
}

// Counts returns the rolling processed and rejected row counts, for progress
// reporting.
func (b *CircuitBreaker) Counts() (processed, rejected int) {
	return b.rowsProcessed, b.rowsRejected
}
