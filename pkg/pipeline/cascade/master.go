// Package cascade implements post-ingestion cascade population: once a job's
// raw rows are committed, the populator derives and upserts the dependent
// datasets (store/product master records, normalized line items, predicted
// orders, customer segments) in dependency order.
package cascade

import (
	"crypto/md5"
	"encoding/binary"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// storeKeyOffset shifts derived store keys into a dedicated id range so they
// cannot collide with product SKUs or legacy hand-assigned ids.
const storeKeyOffset = int64(4261931000000000000)

// keyRange bounds derived natural keys to 18 decimal digits.
const keyRange = int64(1e18)

// wholesaleCostFactor is the assumed cost share of the observed unit price.
const wholesaleCostFactor = 0.7

// foodKeywords classify a product as Food when its name contains any of them.
var foodKeywords = []string{"rice", "dal", "flour", "oil", "spice"}

// hashKey derives a stable positive key from a normalized name.
func hashKey(name string) int64 {
	sum := md5.Sum([]byte(strings.TrimSpace(name)))
	return int64(binary.BigEndian.Uint64(sum[:8]) % uint64(keyRange))
}

// StoreKey derives the deterministic external id for a store name.
// The same name always yields the same key, which is what makes master
// upserts and cascade re-runs idempotent.
func StoreKey(name string) int64 {
	return hashKey(name) + storeKeyOffset
}

// ProductKey derives the deterministic SKU for a product name.
func ProductKey(name string) int64 {
	return hashKey(name)
}

// productCategory classifies a product name into the fixed category set.
func productCategory(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range foodKeywords {
		if strings.Contains(lower, kw) {
			return "Food"
		}
	}
	return "Grocery"
}

// productBrand extracts the brand heuristically as the first word of the name.
func productBrand(name string) string {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// deriveStore builds a Store master record from one raw record.
// Attributes beyond the name are placeholders: master upserts are
// first-write-wins, so an already known store keeps its existing values.
func deriveStore(rec *model.RawRecord, jobID string) *model.Store {
	return &model.Store{
		ExternalID:  StoreKey(rec.CustomerName),
		Name:        strings.TrimSpace(rec.CustomerName),
		Region:      "Unassigned",
		IsActive:    true,
		SourceJobID: jobID,
		CreatedAt:   time.Now(),
	}
}

// deriveProduct builds a Product master record from one raw record.
func deriveProduct(rec *model.RawRecord, jobID string) *model.Product {
	name := strings.TrimSpace(rec.ItemName)
	return &model.Product{
		SKU:         ProductKey(name),
		Name:        name,
		Category:    productCategory(name),
		Brand:       productBrand(name),
		UnitPrice:   rec.UnitPrice,
		Cost:        rec.UnitPrice * wholesaleCostFactor,
		Description: "High quality " + name,
		SourceJobID: jobID,
		CreatedAt:   time.Now(),
	}
}

// deriveLineItem builds a normalized LineItem from one raw record.
func deriveLineItem(rec *model.RawRecord, jobID string) *model.LineItem {
	return &model.LineItem{
		ID:              uuid.New().String(),
		JobID:           jobID,
		OrderRef:        rec.InvoiceID,
		StoreExternalID: StoreKey(rec.CustomerName),
		ProductSKU:      ProductKey(rec.ItemName),
		ProductName:     strings.TrimSpace(rec.ItemName),
		Quantity:        rec.Quantity,
		UnitPrice:       rec.UnitPrice,
		TotalPrice:      rec.Total,
		Discount:        0,
		OrderedAt:       rec.InvoiceDate,
		CreatedAt:       time.Now(),
	}
}
