package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
)

// FindStoreByName returns the store master record with the given name.
func (r *GormRepository) FindStoreByName(ctx context.Context, name string) (*model.Store, error) {
	var store model.Store
	err := r.db(ctx).First(&store, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// FindLineItemsByOrder returns the line items of one order.
func (r *GormRepository) FindLineItemsByOrder(ctx context.Context, orderRef string) ([]*model.LineItem, error) {
	var items []*model.LineItem
	err := r.db(ctx).Where("order_ref = ?", orderRef).Find(&items).Error
	return items, err
}

// FindLineItemsByStore returns a store's line items, newest first.
func (r *GormRepository) FindLineItemsByStore(ctx context.Context, storeExternalID int64, limit int) ([]*model.LineItem, error) {
	q := r.db(ctx).Where("store_external_id = ?", storeExternalID).Order("ordered_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []*model.LineItem
	err := q.Find(&items).Error
	return items, err
}

// FindOrderStats aggregates a store's line items into per-order statistics.
func (r *GormRepository) FindOrderStats(ctx context.Context, storeExternalID int64) ([]model.OrderStat, error) {
	var stats []model.OrderStat
	err := r.db(ctx).
		Model(&model.LineItem{}).
		Select("order_ref, MIN(ordered_at) AS ordered_at, SUM(total_price) AS amount").
		Where("store_external_id = ?", storeExternalID).
		Group("order_ref").
		Order("ordered_at ASC").
		Scan(&stats).Error
	return stats, err
}

// FindStoreActivity summarizes a store's order count, total value, and last
// order date.
func (r *GormRepository) FindStoreActivity(ctx context.Context, storeExternalID int64) (model.StoreActivity, error) {
	activity := model.StoreActivity{StoreExternalID: storeExternalID}
	row := r.db(ctx).
		Model(&model.LineItem{}).
		Select("COUNT(DISTINCT order_ref), COALESCE(SUM(total_price), 0), COALESCE(MAX(ordered_at), '0001-01-01')").
		Where("store_external_id = ?", storeExternalID).
		Row()
	if err := row.Scan(&activity.OrderCount, &activity.TotalValue, &activity.LastOrderedAt); err != nil {
		return model.StoreActivity{}, err
	}
	return activity, nil
}

// FindProductsBySKUs returns product master records for the given SKUs.
func (r *GormRepository) FindProductsBySKUs(ctx context.Context, skus []int64) ([]*model.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var products []*model.Product
	err := r.db(ctx).Where("sku IN ?", skus).Find(&products).Error
	return products, err
}

// FindSegment returns a store's current segment assignment, or nil.
func (r *GormRepository) FindSegment(ctx context.Context, storeExternalID int64) (*model.CustomerSegment, error) {
	var segment model.CustomerSegment
	err := r.db(ctx).First(&segment, "store_external_id = ?", storeExternalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

// FindStoreIDsBySegment returns the store ids carrying the given label.
func (r *GormRepository) FindStoreIDsBySegment(ctx context.Context, label model.SegmentLabel) ([]int64, error) {
	var ids []int64
	err := r.db(ctx).
		Model(&model.CustomerSegment{}).
		Where("label = ?", label).
		Order("store_external_id ASC").
		Pluck("store_external_id", &ids).Error
	return ids, err
}

// FindPredictionsByJob returns the predictions last refreshed by the given job.
func (r *GormRepository) FindPredictionsByJob(ctx context.Context, jobID string) ([]model.PredictedOrder, error) {
	var preds []model.PredictedOrder
	err := r.db(ctx).
		Where("source_job_id = ?", jobID).
		Order("store_external_id ASC, horizon ASC").
		Find(&preds).Error
	return preds, err
}
