package cascade_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/cascade/pkg/pipeline/cascade"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

func newSegmenter() *cascade.ThresholdSegmenter {
	return cascade.NewThresholdSegmenter(coreconfig.SegmentsConfig{
		PremiumValue:  5000,
		PremiumOrders: 8,
		NewMaxOrders:  2,
	})
}

func TestAssignSegments(t *testing.T) {
	s := newSegmenter()

	tests := []struct {
		name     string
		activity model.StoreActivity
		want     model.SegmentLabel
	}{
		{"no orders", model.StoreActivity{OrderCount: 0}, model.SegmentNew},
		{"few orders", model.StoreActivity{OrderCount: 2, TotalValue: 9000}, model.SegmentNew},
		{"high value high frequency", model.StoreActivity{OrderCount: 10, TotalValue: 8000}, model.SegmentPremium},
		{"exactly at premium thresholds", model.StoreActivity{OrderCount: 8, TotalValue: 5000}, model.SegmentPremium},
		{"high value low frequency", model.StoreActivity{OrderCount: 5, TotalValue: 8000}, model.SegmentRegular},
		{"high frequency low value", model.StoreActivity{OrderCount: 20, TotalValue: 1000}, model.SegmentRegular},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Assign(tc.activity))
		})
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	s := newSegmenter()
	activity := model.StoreActivity{OrderCount: 6, TotalValue: 3000}

	first := s.Assign(activity)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Assign(activity))
	}
}
