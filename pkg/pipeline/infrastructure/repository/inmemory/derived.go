package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
)

// FindStoreByName returns the store master record with the given name.
func (r *InMemoryRepository) FindStoreByName(ctx context.Context, name string) (*model.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, store := range r.stores {
		if store.Name == name {
			cloned := *store
			return &cloned, nil
		}
	}
	return nil, repository.ErrStoreNotFound
}

// FindLineItemsByOrder returns the line items of one order.
func (r *InMemoryRepository) FindLineItemsByOrder(ctx context.Context, orderRef string) ([]*model.LineItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.LineItem
	for _, key := range r.lineItemOrder {
		item := r.lineItems[key]
		if item != nil && item.OrderRef == orderRef {
			cloned := *item
			out = append(out, &cloned)
		}
	}
	return out, nil
}

// FindLineItemsByStore returns a store's line items, newest first.
func (r *InMemoryRepository) FindLineItemsByStore(ctx context.Context, storeExternalID int64, limit int) ([]*model.LineItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.LineItem
	for _, key := range r.lineItemOrder {
		item := r.lineItems[key]
		if item != nil && item.StoreExternalID == storeExternalID {
			cloned := *item
			out = append(out, &cloned)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderedAt.After(out[j].OrderedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindOrderStats aggregates a store's line items into per-order statistics,
// ordered by order date ascending.
func (r *InMemoryRepository) FindOrderStats(ctx context.Context, storeExternalID int64) ([]model.OrderStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byOrder := map[string]*model.OrderStat{}
	var refs []string
	for _, key := range r.lineItemOrder {
		item := r.lineItems[key]
		if item == nil || item.StoreExternalID != storeExternalID {
			continue
		}
		stat, ok := byOrder[item.OrderRef]
		if !ok {
			stat = &model.OrderStat{OrderRef: item.OrderRef, OrderedAt: item.OrderedAt}
			byOrder[item.OrderRef] = stat
			refs = append(refs, item.OrderRef)
		}
		stat.Amount += item.TotalPrice
		if !item.OrderedAt.IsZero() && (stat.OrderedAt.IsZero() || item.OrderedAt.Before(stat.OrderedAt)) {
			stat.OrderedAt = item.OrderedAt
		}
	}

	out := make([]model.OrderStat, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *byOrder[ref])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderedAt.Before(out[j].OrderedAt) })
	return out, nil
}

// FindStoreActivity summarizes a store's order count, total value, and last
// order date.
func (r *InMemoryRepository) FindStoreActivity(ctx context.Context, storeExternalID int64) (model.StoreActivity, error) {
	stats, err := r.FindOrderStats(ctx, storeExternalID)
	if err != nil {
		return model.StoreActivity{}, err
	}

	activity := model.StoreActivity{StoreExternalID: storeExternalID}
	for _, stat := range stats {
		activity.OrderCount++
		activity.TotalValue += stat.Amount
		if stat.OrderedAt.After(activity.LastOrderedAt) {
			activity.LastOrderedAt = stat.OrderedAt
		}
	}
	return activity, nil
}

// FindProductsBySKUs returns product master records for the given SKUs.
func (r *InMemoryRepository) FindProductsBySKUs(ctx context.Context, skus []int64) ([]*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Product, 0, len(skus))
	for _, sku := range skus {
		if prod, ok := r.products[sku]; ok {
			cloned := *prod
			out = append(out, &cloned)
		}
	}
	return out, nil
}

// FindSegment returns a store's current segment assignment, or nil.
func (r *InMemoryRepository) FindSegment(ctx context.Context, storeExternalID int64) (*model.CustomerSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	segment, ok := r.segments[storeExternalID]
	if !ok {
		return nil, nil
	}
	cloned := *segment
	return &cloned, nil
}

// FindPredictionsByJob returns the predictions last refreshed by the given
// job, ordered by store and horizon.
func (r *InMemoryRepository) FindPredictionsByJob(ctx context.Context, jobID string) ([]model.PredictedOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.PredictedOrder
	for _, pred := range r.predictions {
		if pred.SourceJobID == jobID {
			out = append(out, *pred)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreExternalID != out[j].StoreExternalID {
			return out[i].StoreExternalID < out[j].StoreExternalID
		}
		return out[i].Horizon < out[j].Horizon
	})
	return out, nil
}

// FindStoreIDsBySegment returns the store ids carrying the given label.
func (r *InMemoryRepository) FindStoreIDsBySegment(ctx context.Context, label model.SegmentLabel) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []int64
	for id, segment := range r.segments {
		if segment.Label == label {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
