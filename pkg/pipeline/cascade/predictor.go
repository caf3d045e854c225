package cascade

import (
	"sort"
	"time"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// OrderPredictor projects a store's next orders from its order history.
// Implementations must be deterministic: the same history always yields the
// same projections. The exact formula is a replaceable strategy; the cascade
// only depends on this interface.
type OrderPredictor interface {
	// Predict returns up to the configured horizon of future order candidates
	// for the store, ordered by horizon step. An empty slice means the store
	// lacks sufficient history.
	Predict(storeExternalID int64, history []model.OrderStat) []model.PredictedOrder
}

// trailingWindow is the number of most recent orders averaged for the
// projected amount.
const trailingWindow = 5

// CadencePredictor is the default OrderPredictor. It projects order dates
// from the median inter-order interval and order amounts from the trailing
// average order value, with confidence decaying per horizon step.
type CadencePredictor struct {
	horizon    int
	minHistory int
}

// Verify the interface is satisfied.
var _ OrderPredictor = (*CadencePredictor)(nil)

// NewCadencePredictor creates a CadencePredictor from configuration.
func NewCadencePredictor(cfg coreconfig.PredictorConfig) *CadencePredictor {
	return &CadencePredictor{
		horizon:    cfg.Horizon,
		minHistory: cfg.MinHistory,
	}
}

// Predict implements OrderPredictor.
func (p *CadencePredictor) Predict(storeExternalID int64, history []model.OrderStat) []model.PredictedOrder {
	if len(history) < p.minHistory || p.horizon <= 0 {
		return nil
	}

	stats := make([]model.OrderStat, 0, len(history))
	for _, s := range history {
		if !s.OrderedAt.IsZero() {
			stats = append(stats, s)
		}
	}
	if len(stats) < p.minHistory {
		return nil
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].OrderedAt.Before(stats[j].OrderedAt) })

	interval := medianInterval(stats)
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}
	amount := trailingAverage(stats, trailingWindow)
	last := stats[len(stats)-1].OrderedAt

	// More history raises confidence, up to the trailing window size.
	historyFactor := float64(len(stats)) / float64(trailingWindow)
	if historyFactor > 1 {
		historyFactor = 1
	}

	out := make([]model.PredictedOrder, 0, p.horizon)
	for h := 1; h <= p.horizon; h++ {
		confidence := (0.9 - 0.15*float64(h-1)) * historyFactor
		if confidence < 0.1 {
			confidence = 0.1
		}
		out = append(out, model.PredictedOrder{
			StoreExternalID: storeExternalID,
			Horizon:         h,
			OrderDate:       last.Add(time.Duration(h) * interval),
			Amount:          amount,
			Confidence:      confidence,
		})
	}
	return out
}

// medianInterval computes the median gap between consecutive orders.
func medianInterval(stats []model.OrderStat) time.Duration {
	if len(stats) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(stats)-1)
	for i := 1; i < len(stats); i++ {
		gaps = append(gaps, stats[i].OrderedAt.Sub(stats[i-1].OrderedAt))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		return (gaps[mid-1] + gaps[mid]) / 2
	}
	return gaps[mid]
}

// trailingAverage averages the amounts of the most recent window orders.
func trailingAverage(stats []model.OrderStat, window int) float64 {
	start := len(stats) - window
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, s := range stats[start:] {
		sum += s.Amount
	}
	return sum / float64(len(stats)-start)
}
