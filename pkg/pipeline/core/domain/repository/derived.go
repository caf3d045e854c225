package repository

import (
	"context"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// DerivedRepository reads the cascade-derived tables. Derived writes happen
// inside the populator's per-kind transactions; this interface covers the
// read side used by the prediction, segmentation, and upsell components.
type DerivedRepository interface {
	// FindStoreByName returns the store master record with the given name,
	// or ErrStoreNotFound.
	FindStoreByName(ctx context.Context, name string) (*model.Store, error)

	// FindLineItemsByOrder returns the line items of one order.
	FindLineItemsByOrder(ctx context.Context, orderRef string) ([]*model.LineItem, error)

	// FindLineItemsByStore returns a store's most recent line items,
	// newest first, capped at limit (0 means no cap).
	FindLineItemsByStore(ctx context.Context, storeExternalID int64, limit int) ([]*model.LineItem, error)

	// FindOrderStats aggregates a store's line items into per-order
	// statistics, ordered by order date ascending.
	FindOrderStats(ctx context.Context, storeExternalID int64) ([]model.OrderStat, error)

	// FindStoreActivity summarizes a store's order count, total value,
	// and last order date.
	FindStoreActivity(ctx context.Context, storeExternalID int64) (model.StoreActivity, error)

	// FindProductsBySKUs returns product master records for the given SKUs.
	FindProductsBySKUs(ctx context.Context, skus []int64) ([]*model.Product, error)

	// FindSegment returns a store's current segment assignment, or nil when
	// the store has not been segmented yet.
	FindSegment(ctx context.Context, storeExternalID int64) (*model.CustomerSegment, error)

	// FindStoreIDsBySegment returns the external ids of stores carrying the
	// given segment label.
	FindStoreIDsBySegment(ctx context.Context, label model.SegmentLabel) ([]int64, error)

	// FindPredictionsByJob returns the predicted orders last refreshed by the
	// given job, ordered by store and horizon.
	FindPredictionsByJob(ctx context.Context, jobID string) ([]model.PredictedOrder, error)
}
