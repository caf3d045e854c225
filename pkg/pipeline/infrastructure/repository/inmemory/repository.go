// Package inmemory provides an in-memory implementation of the pipeline
// repositories and transaction manager. It backs unit tests and the dummy
// run mode; savepoint semantics are emulated with an undo log so the batch
// writer behaves exactly as it does against a real store.
package inmemory

import (
	"sync"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
)

// InMemoryRepository implements repository.PipelineRepository over maps.
type InMemoryRepository struct {
	mu sync.RWMutex
	// txMu serializes transactions; see MemTransactionManager.
	txMu sync.Mutex

	jobs    map[string]*model.UploadJob
	batches map[string][]*model.Batch
	// records holds raw records keyed by record id; recordOrder preserves
	// insertion order for deterministic reads.
	records     map[string]*model.RawRecord
	recordOrder []string

	stores    map[int64]*model.Store
	products  map[int64]*model.Product
	lineItems map[lineItemKey]*model.LineItem
	// lineItemOrder preserves insertion order of line item keys.
	lineItemOrder []lineItemKey
	predictions   map[predictionKey]*model.PredictedOrder
	segments      map[int64]*model.CustomerSegment

	// failInsert, when set, is consulted before applying an insert and lets
	// tests inject constraint violations for specific tables or rows.
	failInsert func(table string, m interface{}) error
}

// lineItemKey is the natural key of a line item.
type lineItemKey struct {
	orderRef string
	sku      int64
}

// predictionKey is the natural key of a predicted order.
type predictionKey struct {
	storeID int64
	horizon int
}

// Verify the aggregate interface is satisfied.
var _ repository.PipelineRepository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		jobs:        map[string]*model.UploadJob{},
		batches:     map[string][]*model.Batch{},
		records:     map[string]*model.RawRecord{},
		stores:      map[int64]*model.Store{},
		products:    map[int64]*model.Product{},
		lineItems:   map[lineItemKey]*model.LineItem{},
		predictions: map[predictionKey]*model.PredictedOrder{},
		segments:    map[int64]*model.CustomerSegment{},
	}
}

// SetFailInsert installs a constraint-violation hook for tests.
// The hook is called for every row about to be inserted within a transaction.
func (r *InMemoryRepository) SetFailInsert(hook func(table string, m interface{}) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInsert = hook
}

// Close implements repository.PipelineRepository.
func (r *InMemoryRepository) Close() error { return nil }
