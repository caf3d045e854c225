package breaker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/cascade/pkg/pipeline/ingest/breaker"
)

func TestBreakerDoesNotTripBelowMinSample(t *testing.T) {
	// 100% rejection rate, but only 500 of the required 1000 rows seen.
	b := breaker.New(0.5, 1000)
	b.RecordBatchOutcome(true, 500, 500)

	assert.False(t, b.ShouldAbort())
}

func TestBreakerTripsAboveThresholdAfterMinSample(t *testing.T) {
	b := breaker.New(0.5, 1000)
	b.RecordBatchOutcome(true, 100, 500)
	assert.False(t, b.ShouldAbort())

	// 700 of 1000 rows rejected: ratio 0.7 > 0.5, sample satisfied.
	b.RecordBatchOutcome(true, 600, 500)
	assert.True(t, b.ShouldAbort())
}

func TestBreakerRatioAtThresholdDoesNotTrip(t *testing.T) {
	// Exactly at the threshold is tolerated; only exceeding it trips.
	b := breaker.New(0.5, 100)
	b.RecordBatchOutcome(true, 250, 500)

	assert.False(t, b.ShouldAbort())
}

func TestBreakerRolledBackBatchCountsAllRows(t *testing.T) {
	b := breaker.New(0.5, 100)
	// A rolled-back batch contributes its full size to the rejected count,
	// even though validation only rejected a handful of rows.
	b.RecordBatchOutcome(false, 3, 500)

	processed, rejected := b.Counts()
	assert.Equal(t, 500, processed)
	assert.Equal(t, 500, rejected)
	assert.True(t, b.ShouldAbort())
}

func TestBreakerTripIsTerminal(t *testing.T) {
	b := breaker.New(0.5, 100)
	b.RecordBatchOutcome(true, 400, 500)
	assert.True(t, b.ShouldAbort())

	// Clean batches afterwards never reset a tripped breaker.
	for i := 0; i < 10; i++ {
		b.RecordBatchOutcome(true, 0, 500)
	}
	assert.True(t, b.ShouldAbort())
}

func TestBreakerCounts(t *testing.T) {
	b := breaker.New(0.9, 10000)
	b.RecordBatchOutcome(true, 25, 500)
	b.RecordBatchOutcome(true, 0, 500)
	b.RecordBatchOutcome(false, 10, 500)

	processed, rejected := b.Counts()
	assert.Equal(t, 1500, processed)
	assert.Equal(t, 525, rejected)
}
