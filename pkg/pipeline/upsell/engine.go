// Package upsell implements the on-demand recommendation engine. It scores
// cross-sell/upsell candidates for an order from co-occurrence over the
// store's purchase history and the history of similar stores. The engine is
// read-only: nothing it computes is persisted by the cascade.
package upsell

import (
	"context"
	"sort"
	"time"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// expectedRevenueFactor converts a candidate's unit price into the expected
// incremental revenue of a successful suggestion.
const expectedRevenueFactor = 1.2

// similarStoreLimit caps the number of same-segment stores consulted.
const similarStoreLimit = 5

// newProductWindow is the age under which a low-support product is presented
// as a new-product suggestion.
const newProductWindow = 30 * 24 * time.Hour

// Engine computes upsell suggestions per order. It has no write side effects
// and is safe for concurrent use; concurrent Suggest calls for different
// orders never contend outside the result cache.
type Engine struct {
	cfg      coreconfig.UpsellConfig
	derived  repository.DerivedRepository
	recorder metrics.MetricRecorder
	cache    *suggestionCache
}

// NewEngine creates an Engine.
func NewEngine(cfg coreconfig.UpsellConfig, derived repository.DerivedRepository, recorder metrics.MetricRecorder) *Engine {
	return &Engine{
		cfg:      cfg,
		derived:  derived,
		recorder: recorder,
		cache:    newSuggestionCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
	}
}

// candidate accumulates scoring state for one product.
type candidate struct {
	sku        int64
	coOccur    int
	support    int
	similar    int
	confidence float64
	kind       model.SuggestionType
}

// Suggest returns ranked suggestions for the order. An order without line
// items or purchase history yields an empty slice, never an error; errors are
// reserved for storage failures.
func (e *Engine) Suggest(ctx context.Context, orderRef string) ([]model.Suggestion, error) {
	start := time.Now()
	if cached, ok := e.cache.get(orderRef); ok {
		e.recorder.RecordSuggest(ctx, true, len(cached), time.Since(start))
		return cached, nil
	}

	items, err := e.derived.FindLineItemsByOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		e.recorder.RecordSuggest(ctx, false, 0, time.Since(start))
		return []model.Suggestion{}, nil
	}

	storeID := items[0].StoreExternalID
	history, err := e.derived.FindLineItemsByStore(ctx, storeID, e.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}

	inOrder := map[int64]bool{}
	for _, item := range items {
		inOrder[item.ProductSKU] = true
	}

	candidates := e.scoreCoOccurrence(items, history, inOrder)
	if len(candidates) < e.cfg.MaxSuggestions {
		if err := e.addSimilarStoreCandidates(ctx, storeID, inOrder, candidates); err != nil {
			// Similar-store expansion is best effort; co-occurrence results
			// are still valid without it.
			logger.Warnf("Similar-store candidate expansion failed for order %s: %v", orderRef, err)
		}
	}

	suggestions, err := e.finalize(ctx, candidates, history)
	if err != nil {
		return nil, err
	}

	e.cache.put(orderRef, suggestions)
	e.recorder.RecordSuggest(ctx, false, len(suggestions), time.Since(start))
	return suggestions, nil
}

// scoreCoOccurrence counts, over the store's historical orders, how often
// each candidate product appears together with the current order's products.
func (e *Engine) scoreCoOccurrence(items []*model.LineItem, history []*model.LineItem, inOrder map[int64]bool) map[int64]*candidate {
	// Group history into orders (baskets).
	baskets := map[string]map[int64]bool{}
	for _, h := range history {
		basket, ok := baskets[h.OrderRef]
		if !ok {
			basket = map[int64]bool{}
			baskets[h.OrderRef] = basket
		}
		basket[h.ProductSKU] = true
	}

	// Per order-product support and candidate co-occurrence.
	productSupport := map[int64]int{}
	for _, basket := range baskets {
		for sku := range basket {
			productSupport[sku]++
		}
	}

	candidates := map[int64]*candidate{}
	for _, basket := range baskets {
		overlaps := false
		for _, item := range items {
			if basket[item.ProductSKU] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			continue
		}
		for sku := range basket {
			if inOrder[sku] {
				continue
			}
			c, ok := candidates[sku]
			if !ok {
				c = &candidate{sku: sku, kind: model.SuggestionFrequentlyBoughtTogether}
				candidates[sku] = c
			}
			c.coOccur++
		}
	}

	totalBaskets := len(baskets)
	for sku, c := range candidates {
		c.support = productSupport[sku]
		if c.coOccur < e.cfg.MinSupport || c.support == 0 {
			delete(candidates, sku)
			continue
		}
		// Confidence: share of the candidate's appearances that co-occur with
		// the order's products, blended with lift over its base popularity.
		conf := float64(c.coOccur) / float64(c.support)
		lift := conf * float64(totalBaskets) / float64(c.support)
		if lift > 2 {
			lift = 2
		}
		c.confidence = 0.7*conf + 0.3*(lift/2)
	}
	return candidates
}

// addSimilarStoreCandidates extends the candidate set with products popular
// among stores in the same segment.
func (e *Engine) addSimilarStoreCandidates(ctx context.Context, storeID int64, inOrder map[int64]bool, candidates map[int64]*candidate) error {
	segment, err := e.derived.FindSegment(ctx, storeID)
	if err != nil {
		return err
	}
	if segment == nil {
		return nil
	}
	peerIDs, err := e.derived.FindStoreIDsBySegment(ctx, segment.Label)
	if err != nil {
		return err
	}

	consulted := 0
	for _, peerID := range peerIDs {
		if peerID == storeID {
			continue
		}
		if consulted >= similarStoreLimit {
			break
		}
		consulted++

		peerItems, err := e.derived.FindLineItemsByStore(ctx, peerID, e.cfg.HistoryLimit)
		if err != nil {
			return err
		}
		for _, item := range peerItems {
			if inOrder[item.ProductSKU] {
				continue
			}
			c, ok := candidates[item.ProductSKU]
			if !ok {
				c = &candidate{sku: item.ProductSKU, kind: model.SuggestionPopularWithSimilar}
				candidates[c.sku] = c
			}
			c.similar++
		}
	}

	// Popularity among peers contributes a weaker confidence than direct
	// co-occurrence; it only classifies candidates with no local signal.
	for _, c := range candidates {
		if c.coOccur == 0 && c.similar > 0 {
			if c.similar < e.cfg.MinSupport {
				delete(candidates, c.sku)
				continue
			}
			conf := 0.3 + 0.05*float64(c.similar)
			if conf > 0.6 {
				conf = 0.6
			}
			c.confidence = conf
			c.kind = model.SuggestionPopularWithSimilar
		}
	}
	return nil
}

// finalize resolves product attributes, classifies seasonal and new-product
// candidates, ranks by confidence, and caps the result.
func (e *Engine) finalize(ctx context.Context, candidates map[int64]*candidate, history []*model.LineItem) ([]model.Suggestion, error) {
	if len(candidates) == 0 {
		return []model.Suggestion{}, nil
	}

	skus := make([]int64, 0, len(candidates))
	for sku := range candidates {
		skus = append(skus, sku)
	}
	sort.Slice(skus, func(i, j int) bool { return skus[i] < skus[j] })

	products, err := e.derived.FindProductsBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}
	bySKU := map[int64]*model.Product{}
	for _, prod := range products {
		bySKU[prod.SKU] = prod
	}

	now := time.Now()
	suggestions := make([]model.Suggestion, 0, len(candidates))
	for _, sku := range skus {
		c := candidates[sku]
		product, ok := bySKU[sku]
		if !ok {
			continue
		}

		kind := c.kind
		switch {
		case isSeasonal(sku, history, now):
			kind = model.SuggestionSeasonal
		case c.support <= e.cfg.MinSupport && now.Sub(product.CreatedAt) < newProductWindow:
			kind = model.SuggestionNewProduct
		}

		suggestions = append(suggestions, model.Suggestion{
			ProductSKU:      sku,
			ProductName:     product.Name,
			Type:            kind,
			Confidence:      c.confidence,
			Reason:          reasonText(kind),
			ExpectedRevenue: product.UnitPrice * expectedRevenueFactor,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if e.cfg.MaxSuggestions > 0 && len(suggestions) > e.cfg.MaxSuggestions {
		suggestions = suggestions[:e.cfg.MaxSuggestions]
	}
	return suggestions, nil
}

// isSeasonal reports whether the candidate's historical purchases cluster in
// the current calendar month (at least 3 purchases, over 60% in-month).
func isSeasonal(sku int64, history []*model.LineItem, now time.Time) bool {
	var total, inMonth int
	for _, item := range history {
		if item.ProductSKU != sku || item.OrderedAt.IsZero() {
			continue
		}
		total++
		if item.OrderedAt.Month() == now.Month() {
			inMonth++
		}
	}
	return total >= 3 && float64(inMonth)/float64(total) > 0.6
}

// reasonText renders the human-readable justification for a suggestion type.
func reasonText(kind model.SuggestionType) string {
	switch kind {
	case model.SuggestionFrequentlyBoughtTogether:
		return "Frequently bought together"
	case model.SuggestionPopularWithSimilar:
		return "Popular with similar customers"
	case model.SuggestionSeasonal:
		return "In season this month"
	case model.SuggestionNewProduct:
		return "New product"
	default:
		return ""
	}
}
