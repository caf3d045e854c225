package cascade

import (
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// SegmentStrategy assigns a store to a categorical segment from its recent
// activity. Implementations must be deterministic: no randomness, the same
// activity always yields the same label.
type SegmentStrategy interface {
	Assign(activity model.StoreActivity) model.SegmentLabel
}

// ThresholdSegmenter is the default SegmentStrategy, bucketing stores by
// order count and recent order value against configured thresholds.
type ThresholdSegmenter struct {
	premiumValue  float64
	premiumOrders int
	newMaxOrders  int
}

// Verify the interface is satisfied.
var _ SegmentStrategy = (*ThresholdSegmenter)(nil)

// NewThresholdSegmenter creates a ThresholdSegmenter from configuration.
func NewThresholdSegmenter(cfg coreconfig.SegmentsConfig) *ThresholdSegmenter {
	return &ThresholdSegmenter{
		premiumValue:  cfg.PremiumValue,
		premiumOrders: cfg.PremiumOrders,
		newMaxOrders:  cfg.NewMaxOrders,
	}
}

// Assign implements SegmentStrategy.
// A store with very few orders is New regardless of value; a store clearing
// both the value and frequency thresholds is Premium; everything else is Regular.
func (s *ThresholdSegmenter) Assign(activity model.StoreActivity) model.SegmentLabel {
	if activity.OrderCount <= s.newMaxOrders {
		return model.SegmentNew
	}
	if activity.TotalValue >= s.premiumValue && activity.OrderCount >= s.premiumOrders {
		return model.SegmentPremium
	}
	return model.SegmentRegular
}
