package inmemory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	tx "github.com/tigerroll/cascade/pkg/pipeline/core/tx"
)

// MemTransactionManager implements tx.TransactionManager against the
// in-memory repository. Transactions are serialized by a single lock and
// savepoints are emulated with an undo log, so rollback-to-savepoint behaves
// exactly like its SQL counterpart.
type MemTransactionManager struct {
	repo *InMemoryRepository
}

// Verify the interface is satisfied.
var _ tx.TransactionManager = (*MemTransactionManager)(nil)

// NewMemTransactionManager creates a transaction manager over the repository.
func NewMemTransactionManager(repo *InMemoryRepository) *MemTransactionManager {
	return &MemTransactionManager{repo: repo}
}

// Begin starts a transaction, taking the repository's transaction lock.
func (m *MemTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.repo.txMu.Lock()
	return &memTx{repo: m.repo, savepoints: map[string]int{}}, nil
}

// Commit discards the undo log and releases the transaction lock.
func (m *MemTransactionManager) Commit(t tx.Tx) error {
	mt, ok := t.(*memTx)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *memTx")
	}
	if mt.done {
		return fmt.Errorf("transaction already finished")
	}
	mt.done = true
	mt.undo = nil
	m.repo.txMu.Unlock()
	return nil
}

// Rollback undoes all changes and releases the transaction lock.
func (m *MemTransactionManager) Rollback(t tx.Tx) error {
	mt, ok := t.(*memTx)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *memTx")
	}
	if mt.done {
		return fmt.Errorf("transaction already finished")
	}
	mt.done = true
	mt.unwindTo(0)
	m.repo.txMu.Unlock()
	return nil
}

// memTx implements tx.Tx with an undo log over the live maps.
type memTx struct {
	repo       *InMemoryRepository
	undo       []func()
	savepoints map[string]int
	done       bool
}

// Savepoint implements tx.Tx.
func (t *memTx) Savepoint(name string) error {
	t.savepoints[name] = len(t.undo)
	return nil
}

// RollbackToSavepoint implements tx.Tx.
func (t *memTx) RollbackToSavepoint(name string) error {
	mark, ok := t.savepoints[name]
	if !ok {
		return fmt.Errorf("unknown savepoint: %s", name)
	}
	t.unwindTo(mark)
	return nil
}

// unwindTo applies the undo log in reverse down to the given mark.
func (t *memTx) unwindTo(mark int) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for i := len(t.undo) - 1; i >= mark; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:mark]
}

// ExecuteInsert implements tx.TxExecutor for the ingestion tables.
func (t *memTx) ExecuteInsert(ctx context.Context, m interface{}, tableName string) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	switch v := m.(type) {
	case []*model.RawRecord:
		for _, rec := range v {
			if err := t.insertRecord(tableName, rec); err != nil {
				return 0, err
			}
		}
		return int64(len(v)), nil
	case *model.Batch:
		if t.repo.failInsert != nil {
			if err := t.repo.failInsert(tableName, v); err != nil {
				return 0, err
			}
		}
		cloned := *v
		t.repo.batches[v.JobID] = append(t.repo.batches[v.JobID], &cloned)
		jobID := v.JobID
		t.undo = append(t.undo, func() {
			batches := t.repo.batches[jobID]
			t.repo.batches[jobID] = batches[:len(batches)-1]
		})
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported insert model type %T", m)
	}
}

// insertRecord applies one raw record insert, enforcing primary key uniqueness.
func (t *memTx) insertRecord(tableName string, rec *model.RawRecord) error {
	if t.repo.failInsert != nil {
		if err := t.repo.failInsert(tableName, rec); err != nil {
			return err
		}
	}
	if _, exists := t.repo.records[rec.ID]; exists {
		return fmt.Errorf("duplicate raw record id %s", rec.ID)
	}
	cloned := *rec
	t.repo.records[rec.ID] = &cloned
	t.repo.recordOrder = append(t.repo.recordOrder, rec.ID)
	id := rec.ID
	t.undo = append(t.undo, func() {
		delete(t.repo.records, id)
		t.repo.recordOrder = t.repo.recordOrder[:len(t.repo.recordOrder)-1]
	})
	return nil
}

// ExecuteUpsert implements tx.TxExecutor for the derived tables.
// First-write-wins tables (stores, products, line items) treat conflicts as
// DO NOTHING; predictions and segments update in place.
func (t *memTx) ExecuteUpsert(ctx context.Context, m interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	var affected int64
	switch v := m.(type) {
	case []*model.Store:
		for _, store := range v {
			if _, exists := t.repo.stores[store.ExternalID]; exists {
				continue
			}
			cloned := *store
			t.repo.stores[store.ExternalID] = &cloned
			id := store.ExternalID
			t.undo = append(t.undo, func() { delete(t.repo.stores, id) })
			affected++
		}
	case []*model.Product:
		for _, prod := range v {
			if _, exists := t.repo.products[prod.SKU]; exists {
				continue
			}
			cloned := *prod
			t.repo.products[prod.SKU] = &cloned
			sku := prod.SKU
			t.undo = append(t.undo, func() { delete(t.repo.products, sku) })
			affected++
		}
	case []*model.LineItem:
		for _, item := range v {
			key := lineItemKey{orderRef: item.OrderRef, sku: item.ProductSKU}
			if _, exists := t.repo.lineItems[key]; exists {
				continue
			}
			cloned := *item
			t.repo.lineItems[key] = &cloned
			t.repo.lineItemOrder = append(t.repo.lineItemOrder, key)
			k := key
			t.undo = append(t.undo, func() {
				delete(t.repo.lineItems, k)
				t.repo.lineItemOrder = t.repo.lineItemOrder[:len(t.repo.lineItemOrder)-1]
			})
			affected++
		}
	case []model.PredictedOrder:
		for _, pred := range v {
			key := predictionKey{storeID: pred.StoreExternalID, horizon: pred.Horizon}
			prior := t.repo.predictions[key]
			cloned := pred
			t.repo.predictions[key] = &cloned
			k, p := key, prior
			t.undo = append(t.undo, func() {
				if p == nil {
					delete(t.repo.predictions, k)
				} else {
					t.repo.predictions[k] = p
				}
			})
			affected++
		}
	case []model.CustomerSegment:
		for _, segment := range v {
			prior := t.repo.segments[segment.StoreExternalID]
			cloned := segment
			t.repo.segments[segment.StoreExternalID] = &cloned
			id, p := segment.StoreExternalID, prior
			t.undo = append(t.undo, func() {
				if p == nil {
					delete(t.repo.segments, id)
				} else {
					t.repo.segments[id] = p
				}
			})
			affected++
		}
	default:
		return 0, fmt.Errorf("unsupported upsert model type %T", m)
	}
	return affected, nil
}
