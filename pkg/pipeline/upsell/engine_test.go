package upsell_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	coremetrics "github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/infrastructure/repository/inmemory"
	"github.com/tigerroll/cascade/pkg/pipeline/upsell"
)

const (
	storeGupta  int64 = 1
	storeSharma int64 = 2

	skuRice int64 = 101
	skuOil  int64 = 102
	skuSalt int64 = 103
	skuTea  int64 = 104
)

func upsellConfig() coreconfig.UpsellConfig {
	return coreconfig.UpsellConfig{
		CacheTTLSeconds: 300,
		MaxSuggestions:  5,
		MinSupport:      2,
		HistoryLimit:    500,
	}
}

// seedDerived commits products and line items through the same upsert path the
// cascade uses.
func seedDerived(t *testing.T, repo *inmemory.InMemoryRepository, products []*model.Product, items []*model.LineItem) {
	t.Helper()
	tm := inmemory.NewMemTransactionManager(repo)
	txn, err := tm.Begin(context.Background())
	require.NoError(t, err)
	if len(products) > 0 {
		_, err = txn.ExecuteUpsert(context.Background(), products, model.Product{}.TableName(), []string{"sku"}, nil)
		require.NoError(t, err)
	}
	if len(items) > 0 {
		_, err = txn.ExecuteUpsert(context.Background(), items, model.LineItem{}.TableName(), []string{"order_ref", "product_sku"}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, tm.Commit(txn))
}

func seedSegments(t *testing.T, repo *inmemory.InMemoryRepository, segments []model.CustomerSegment) {
	t.Helper()
	tm := inmemory.NewMemTransactionManager(repo)
	txn, err := tm.Begin(context.Background())
	require.NoError(t, err)
	_, err = txn.ExecuteUpsert(context.Background(), segments, model.CustomerSegment{}.TableName(),
		[]string{"store_external_id"}, []string{"label"})
	require.NoError(t, err)
	require.NoError(t, tm.Commit(txn))
}

func lineItem(orderRef string, storeID, sku int64, orderedAt time.Time) *model.LineItem {
	return &model.LineItem{
		ID:              fmt.Sprintf("%s-%d", orderRef, sku),
		OrderRef:        orderRef,
		StoreExternalID: storeID,
		ProductSKU:      sku,
		Quantity:        1,
		UnitPrice:       50,
		TotalPrice:      50,
		OrderedAt:       orderedAt,
	}
}

func product(sku int64, name string, price float64) *model.Product {
	return &model.Product{SKU: sku, Name: name, UnitPrice: price}
}

func month(m time.Month) time.Time {
	return time.Date(2025, m, 10, 0, 0, 0, 0, time.UTC)
}

func newEngine(repo repository.DerivedRepository, cfg coreconfig.UpsellConfig) *upsell.Engine {
	return upsell.NewEngine(cfg, repo, coremetrics.NewNoOpMetricRecorder())
}

func TestSuggestUnknownOrderIsEmptyNotError(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	e := newEngine(repo, upsellConfig())

	suggestions, err := e.Suggest(context.Background(), "no-such-order")
	require.NoError(t, err)
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}

func TestSuggestScoresCoOccurrence(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	seedDerived(t, repo,
		[]*model.Product{
			product(skuRice, "Basmati Rice 1kg", 80),
			product(skuOil, "Sunflower Oil 1L", 120),
			product(skuSalt, "Salt", 25),
		},
		[]*model.LineItem{
			// Oil rides along with rice in two of its three appearances. Salt
			// co-occurs only once, below the minimum support.
			lineItem("O1", storeGupta, skuRice, month(time.January)),
			lineItem("O1", storeGupta, skuOil, month(time.January)),
			lineItem("O2", storeGupta, skuRice, month(time.February)),
			lineItem("O2", storeGupta, skuOil, month(time.February)),
			lineItem("O3", storeGupta, skuRice, month(time.March)),
			lineItem("O3", storeGupta, skuSalt, month(time.March)),
			lineItem("O4", storeGupta, skuOil, month(time.April)),
			lineItem("O-NOW", storeGupta, skuRice, month(time.May)),
		})
	e := newEngine(repo, upsellConfig())

	suggestions, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	got := suggestions[0]
	assert.Equal(t, skuOil, got.ProductSKU)
	assert.Equal(t, "Sunflower Oil 1L", got.ProductName)
	assert.Equal(t, model.SuggestionFrequentlyBoughtTogether, got.Type)
	assert.Equal(t, "Frequently bought together", got.Reason)
	// Oil appears in 3 of 5 baskets and co-occurs with rice in 2 of them:
	// confidence 2/3, lift (2/3)*5/3 capped contribution.
	assert.InDelta(t, 0.6333, got.Confidence, 0.001)
	assert.InDelta(t, 144.0, got.ExpectedRevenue, 0.001)
}

func TestSuggestRanksByConfidenceAndCapsResults(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	items := []*model.LineItem{
		lineItem("O-NOW", storeGupta, skuRice, month(time.May)),
	}
	// Oil co-occurs with rice in three baskets, salt and tea in two each, but
	// salt also sells alone so its confidence trails oil's.
	for i := 0; i < 3; i++ {
		ref := fmt.Sprintf("A%d", i)
		items = append(items,
			lineItem(ref, storeGupta, skuRice, month(time.January)),
			lineItem(ref, storeGupta, skuOil, month(time.January)))
	}
	for i := 0; i < 2; i++ {
		ref := fmt.Sprintf("B%d", i)
		items = append(items,
			lineItem(ref, storeGupta, skuRice, month(time.February)),
			lineItem(ref, storeGupta, skuSalt, month(time.February)),
			lineItem(ref, storeGupta, skuTea, month(time.February)))
	}
	items = append(items,
		lineItem("C0", storeGupta, skuSalt, month(time.March)),
		lineItem("C1", storeGupta, skuSalt, month(time.April)))

	seedDerived(t, repo,
		[]*model.Product{
			product(skuRice, "Rice", 80),
			product(skuOil, "Oil", 120),
			product(skuSalt, "Salt", 25),
			product(skuTea, "Tea", 60),
		},
		items)

	cfg := upsellConfig()
	cfg.MaxSuggestions = 2
	e := newEngine(repo, cfg)

	suggestions, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, skuOil, suggestions[0].ProductSKU)
	assert.GreaterOrEqual(t, suggestions[0].Confidence, suggestions[1].Confidence)
	// Salt's extra solo purchases dilute its confidence below tea's.
	assert.Equal(t, skuTea, suggestions[1].ProductSKU)
}

func TestSuggestFallsBackToSimilarStores(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	seedDerived(t, repo,
		[]*model.Product{
			product(skuRice, "Rice", 80),
			product(skuTea, "Tea", 60),
		},
		[]*model.LineItem{
			// The order's store has no history beyond the order itself, so the
			// only candidates come from peers in the same segment.
			lineItem("O-NOW", storeGupta, skuRice, month(time.May)),
			lineItem("P1", storeSharma, skuTea, month(time.January)),
			lineItem("P2", storeSharma, skuTea, month(time.February)),
		})
	seedSegments(t, repo, []model.CustomerSegment{
		{StoreExternalID: storeGupta, Label: model.SegmentRegular},
		{StoreExternalID: storeSharma, Label: model.SegmentRegular},
	})
	e := newEngine(repo, upsellConfig())

	suggestions, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	got := suggestions[0]
	assert.Equal(t, skuTea, got.ProductSKU)
	assert.Equal(t, model.SuggestionPopularWithSimilar, got.Type)
	assert.Equal(t, "Popular with similar customers", got.Reason)
	// Two peer purchases: 0.3 base plus 0.05 each.
	assert.InDelta(t, 0.40, got.Confidence, 0.001)
}

func TestSuggestClassifiesSeasonalCandidates(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	now := time.Now()
	seedDerived(t, repo,
		[]*model.Product{
			product(skuRice, "Rice", 80),
			product(skuOil, "Oil", 120),
		},
		[]*model.LineItem{
			// Every oil purchase falls in the current month.
			lineItem("O1", storeGupta, skuRice, now),
			lineItem("O1", storeGupta, skuOil, now),
			lineItem("O2", storeGupta, skuRice, now),
			lineItem("O2", storeGupta, skuOil, now),
			lineItem("O3", storeGupta, skuRice, now),
			lineItem("O3", storeGupta, skuOil, now),
			lineItem("O-NOW", storeGupta, skuRice, now),
		})
	e := newEngine(repo, upsellConfig())

	suggestions, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, model.SuggestionSeasonal, suggestions[0].Type)
	assert.Equal(t, "In season this month", suggestions[0].Reason)
}

func TestSuggestFlagsRecentLowSupportProductsAsNew(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	recent := product(skuOil, "Oil", 120)
	recent.CreatedAt = time.Now().Add(-24 * time.Hour)
	seedDerived(t, repo,
		[]*model.Product{product(skuRice, "Rice", 80), recent},
		[]*model.LineItem{
			// Oil has exactly the minimum support, all of it recent.
			lineItem("O1", storeGupta, skuRice, month(time.January)),
			lineItem("O1", storeGupta, skuOil, month(time.January)),
			lineItem("O2", storeGupta, skuRice, month(time.February)),
			lineItem("O2", storeGupta, skuOil, month(time.February)),
			lineItem("O-NOW", storeGupta, skuRice, month(time.May)),
		})
	e := newEngine(repo, upsellConfig())

	suggestions, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, model.SuggestionNewProduct, suggestions[0].Type)
	assert.Equal(t, "New product", suggestions[0].Reason)
}

// countingRepo counts order lookups to observe cache hits.
type countingRepo struct {
	repository.DerivedRepository
	orderLookups atomic.Int64
}

func (r *countingRepo) FindLineItemsByOrder(ctx context.Context, orderRef string) ([]*model.LineItem, error) {
	r.orderLookups.Add(1)
	return r.DerivedRepository.FindLineItemsByOrder(ctx, orderRef)
}

func TestSuggestCachesPerOrder(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	seedDerived(t, repo,
		[]*model.Product{product(skuRice, "Rice", 80), product(skuOil, "Oil", 120)},
		[]*model.LineItem{
			lineItem("O1", storeGupta, skuRice, month(time.January)),
			lineItem("O1", storeGupta, skuOil, month(time.January)),
			lineItem("O2", storeGupta, skuRice, month(time.February)),
			lineItem("O2", storeGupta, skuOil, month(time.February)),
			lineItem("O-NOW", storeGupta, skuRice, month(time.May)),
		})
	counting := &countingRepo{DerivedRepository: repo}
	e := newEngine(counting, upsellConfig())

	first, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	second, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), counting.orderLookups.Load())
}

func TestSuggestCacheDisabledByZeroTTL(t *testing.T) {
	repo := inmemory.NewInMemoryRepository()
	seedDerived(t, repo,
		[]*model.Product{product(skuRice, "Rice", 80)},
		[]*model.LineItem{lineItem("O-NOW", storeGupta, skuRice, month(time.May))})
	counting := &countingRepo{DerivedRepository: repo}

	cfg := upsellConfig()
	cfg.CacheTTLSeconds = 0
	e := newEngine(counting, cfg)

	_, err := e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	_, err = e.Suggest(context.Background(), "O-NOW")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counting.orderLookups.Load())
}
