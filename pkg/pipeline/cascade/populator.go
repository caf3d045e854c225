package cascade

import (
	"context"
	"sort"
	"sync"
	"time"

	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/repository"
	"github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	tx "github.com/tigerroll/cascade/pkg/pipeline/core/tx"
	"github.com/tigerroll/cascade/pkg/pipeline/support/exception"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

const moduleName = "cascade"

// Derived table names, also used as PopulationResult keys.
const (
	tableStores          = "stores"
	tableProducts        = "products"
	tableLineItems       = "line_items"
	tablePredictedOrders = "predicted_orders"
	tableSegments        = "customer_segments"
)

// PopulationResult maps each derived table to the number of rows written.
// On an idempotent re-run the counts for first-write-wins tables are zero.
type PopulationResult map[string]int64

// CascadePopulator derives and upserts the dependent datasets of a job in
// dependency order: master records first (later steps reference them by
// natural key), then line items, then the aggregates computed from line items
// plus history already in the store.
//
// Every write is an upsert keyed by natural identifiers, so re-invoking
// Populate for the same job is safe. Each entity kind runs in its own
// transaction to bound the retry blast radius: a failing step leaves earlier
// kinds committed, and a re-run completes the rest.
type CascadePopulator struct {
	cfg       coreconfig.CascadeConfig
	txManager tx.TransactionManager
	records   repository.RawRecordRepository
	derived   repository.DerivedRepository
	jobs      repository.JobRepository
	predictor OrderPredictor
	segmenter SegmentStrategy
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer

	// jobLocks serializes concurrent Populate calls per job id. Populations
	// for different jobs run concurrently.
	jobLocks sync.Map
}

// NewCascadePopulator creates a CascadePopulator.
func NewCascadePopulator(
	cfg coreconfig.CascadeConfig,
	txManager tx.TransactionManager,
	records repository.RawRecordRepository,
	derived repository.DerivedRepository,
	jobs repository.JobRepository,
	predictor OrderPredictor,
	segmenter SegmentStrategy,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *CascadePopulator {
	return &CascadePopulator{
		cfg:       cfg,
		txManager: txManager,
		records:   records,
		derived:   derived,
		jobs:      jobs,
		predictor: predictor,
		segmenter: segmenter,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// Populate derives all dependent datasets from the committed raw records of
// the given job. It returns the rows written per derived table.
func (p *CascadePopulator) Populate(ctx context.Context, jobID string) (PopulationResult, error) {
	unlock := p.lockJob(jobID)
	defer unlock()

	ctx, endSpan := p.tracer.StartSpan(ctx, "pipeline.cascade")
	result := PopulationResult{}

	if _, err := p.jobs.FindJobByID(ctx, jobID); err != nil {
		endSpan(err)
		return nil, exception.New(moduleName, exception.KindCascade, "cannot populate unknown job", err)
	}

	records, err := p.records.FindRecordsByJobID(ctx, jobID)
	if err != nil {
		endSpan(err)
		return nil, exception.New(moduleName, exception.KindCascade, "failed to load raw records", err)
	}
	if len(records) == 0 {
		logger.Infof("Cascade for job %s: no committed records, nothing to derive.", jobID)
		endSpan(nil)
		return result, nil
	}

	steps := []struct {
		table string
		run   func(context.Context, tx.Tx) (int64, error)
	}{
		{tableStores, func(ctx context.Context, txn tx.Tx) (int64, error) {
			return p.populateStores(ctx, txn, records, jobID)
		}},
		{tableProducts, func(ctx context.Context, txn tx.Tx) (int64, error) {
			return p.populateProducts(ctx, txn, records, jobID)
		}},
		{tableLineItems, func(ctx context.Context, txn tx.Tx) (int64, error) {
			return p.populateLineItems(ctx, txn, records, jobID)
		}},
		{tablePredictedOrders, func(ctx context.Context, txn tx.Tx) (int64, error) {
			return p.populatePredictedOrders(ctx, txn, records, jobID)
		}},
		{tableSegments, func(ctx context.Context, txn tx.Tx) (int64, error) {
			return p.populateSegments(ctx, txn, records, jobID)
		}},
	}

	for _, step := range steps {
		written, err := p.runStep(ctx, jobID, step.table, step.run)
		if err != nil {
			endSpan(err)
			return result, err
		}
		result[step.table] = written
	}

	logger.Infof("Cascade for job %s complete: %d stores, %d products, %d line items, %d predictions, %d segments written.",
		jobID, result[tableStores], result[tableProducts], result[tableLineItems],
		result[tablePredictedOrders], result[tableSegments])
	endSpan(nil)
	return result, nil
}

// runStep executes one entity-kind population inside its own transaction,
// bounded by the configured step timeout.
func (p *CascadePopulator) runStep(ctx context.Context, jobID, table string, run func(context.Context, tx.Tx) (int64, error)) (int64, error) {
	if p.cfg.StepTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.StepTimeoutSeconds)*time.Second)
		defer cancel()
	}

	start := time.Now()
	txn, err := p.txManager.Begin(ctx)
	if err != nil {
		return 0, exception.New(moduleName, exception.KindCascade,
			"failed to begin transaction for step "+table, err)
	}

	written, err := run(ctx, txn)
	if err != nil {
		_ = p.txManager.Rollback(txn)
		return 0, exception.New(moduleName, exception.KindCascade, "population step "+table+" failed", err)
	}
	if err := p.txManager.Commit(txn); err != nil {
		return 0, exception.New(moduleName, exception.KindCascade, "failed to commit step "+table, err)
	}

	p.recorder.RecordCascadeStep(ctx, jobID, table, written, time.Since(start))
	logger.Debugf("Cascade step %s for job %s wrote %d rows.", table, jobID, written)
	return written, nil
}

// populateStores upserts one master record per distinct store name.
// First-write-wins: conflicts on the natural key do nothing, so an existing
// store's attributes are never overwritten by a later job.
func (p *CascadePopulator) populateStores(ctx context.Context, txn tx.Tx, records []*model.RawRecord, jobID string) (int64, error) {
	byKey := map[int64]*model.Store{}
	for _, rec := range records {
		store := deriveStore(rec, jobID)
		if _, seen := byKey[store.ExternalID]; !seen {
			byKey[store.ExternalID] = store
		}
	}
	stores := sortedValues(byKey)
	if len(stores) == 0 {
		return 0, nil
	}
	return txn.ExecuteUpsert(ctx, stores, model.Store{}.TableName(), []string{"external_id"}, nil)
}

// populateProducts upserts one master record per distinct product name,
// first-write-wins like stores.
func (p *CascadePopulator) populateProducts(ctx context.Context, txn tx.Tx, records []*model.RawRecord, jobID string) (int64, error) {
	byKey := map[int64]*model.Product{}
	for _, rec := range records {
		product := deriveProduct(rec, jobID)
		if _, seen := byKey[product.SKU]; !seen {
			byKey[product.SKU] = product
		}
	}
	products := make([]*model.Product, 0, len(byKey))
	keys := make([]int64, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		products = append(products, byKey[k])
	}
	if len(products) == 0 {
		return 0, nil
	}
	return txn.ExecuteUpsert(ctx, products, model.Product{}.TableName(), []string{"sku"}, nil)
}

// populateLineItems upserts one normalized line item per raw record, keyed by
// (order_ref, product_sku) so re-runs insert nothing new.
func (p *CascadePopulator) populateLineItems(ctx context.Context, txn tx.Tx, records []*model.RawRecord, jobID string) (int64, error) {
	items := make([]*model.LineItem, 0, len(records))
	for _, rec := range records {
		items = append(items, deriveLineItem(rec, jobID))
	}
	if len(items) == 0 {
		return 0, nil
	}
	return txn.ExecuteUpsert(ctx, items, model.LineItem{}.TableName(), []string{"order_ref", "product_sku"}, nil)
}

// populatePredictedOrders projects future orders per store from its full
// order history (the new job's line items plus history already in the store)
// and upserts them, refreshing earlier projections.
func (p *CascadePopulator) populatePredictedOrders(ctx context.Context, txn tx.Tx, records []*model.RawRecord, jobID string) (int64, error) {
	now := time.Now()
	var preds []model.PredictedOrder
	for _, storeID := range distinctStoreIDs(records) {
		history, err := p.derived.FindOrderStats(ctx, storeID)
		if err != nil {
			return 0, err
		}
		for _, pred := range p.predictor.Predict(storeID, history) {
			pred.PredictedAt = now
			pred.SourceJobID = jobID
			preds = append(preds, pred)
		}
	}
	if len(preds) == 0 {
		return 0, nil
	}
	return txn.ExecuteUpsert(ctx, preds, model.PredictedOrder{}.TableName(),
		[]string{"store_external_id", "horizon"},
		[]string{"order_date", "amount", "confidence", "predicted_at", "source_job_id"})
}

// populateSegments assigns each affected store to a segment from its recent
// activity and upserts the assignment, refreshing earlier labels.
func (p *CascadePopulator) populateSegments(ctx context.Context, txn tx.Tx, records []*model.RawRecord, jobID string) (int64, error) {
	now := time.Now()
	var segments []model.CustomerSegment
	for _, storeID := range distinctStoreIDs(records) {
		activity, err := p.derived.FindStoreActivity(ctx, storeID)
		if err != nil {
			return 0, err
		}
		segments = append(segments, model.CustomerSegment{
			StoreExternalID: storeID,
			Label:           p.segmenter.Assign(activity),
			OrderCount:      activity.OrderCount,
			TotalValue:      activity.TotalValue,
			AssignedAt:      now,
			SourceJobID:     jobID,
		})
	}
	if len(segments) == 0 {
		return 0, nil
	}
	return txn.ExecuteUpsert(ctx, segments, model.CustomerSegment{}.TableName(),
		[]string{"store_external_id"},
		[]string{"label", "order_count", "total_value", "assigned_at", "source_job_id"})
}

// lockJob acquires the per-job serialization lock and returns its release func.
func (p *CascadePopulator) lockJob(jobID string) func() {
	muIface, _ := p.jobLocks.LoadOrStore(jobID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// distinctStoreIDs returns the sorted set of store keys touched by the records.
func distinctStoreIDs(records []*model.RawRecord) []int64 {
	seen := map[int64]struct{}{}
	var ids []int64
	for _, rec := range records {
		id := StoreKey(rec.CustomerName)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedValues returns store values ordered by external id for stable inserts.
func sortedValues(byKey map[int64]*model.Store) []*model.Store {
	keys := make([]int64, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]*model.Store, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}
