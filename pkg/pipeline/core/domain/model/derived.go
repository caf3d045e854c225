package model

import "time"

// Store is a master record for a purchasing store, derived from raw records
// and upserted by natural key (ExternalID). Master upserts are
// first-write-wins: an existing store's attributes are never overwritten by
// a later job.
type Store struct {
	// ExternalID is the deterministic business key derived from the store name.
	ExternalID int64  `gorm:"column:external_id;primaryKey"`
	Name       string `gorm:"column:name"`
	Address    string `gorm:"column:address"`
	City       string `gorm:"column:city"`
	Region     string `gorm:"column:region"`
	IsActive   bool   `gorm:"column:is_active"`
	// SourceJobID records the job that first created the record.
	SourceJobID string    `gorm:"column:source_job_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName maps Store to its table.
func (Store) TableName() string { return "stores" }

// Product is a master record for a purchased product, derived from raw
// records and upserted by natural key (SKU).
type Product struct {
	// SKU is the deterministic business key derived from the product name.
	SKU      int64  `gorm:"column:sku;primaryKey"`
	Name     string `gorm:"column:name"`
	Category string `gorm:"column:category"`
	Brand    string `gorm:"column:brand"`
	// UnitPrice is the first observed unit price; Cost its derived wholesale cost.
	UnitPrice   float64   `gorm:"column:unit_price"`
	Cost        float64   `gorm:"column:cost"`
	Description string    `gorm:"column:description"`
	SourceJobID string    `gorm:"column:source_job_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName maps Product to its table.
func (Product) TableName() string { return "products" }

// LineItem is a normalized invoice line, one per committed raw record,
// upserted by (OrderRef, ProductSKU).
type LineItem struct {
	ID       string `gorm:"column:id;primaryKey"`
	JobID    string `gorm:"column:job_id;index"`
	OrderRef string `gorm:"column:order_ref;index:idx_line_items_natural,unique"`
	// StoreExternalID and ProductSKU reference the master records by natural key.
	StoreExternalID int64     `gorm:"column:store_external_id;index"`
	ProductSKU      int64     `gorm:"column:product_sku;index:idx_line_items_natural,unique"`
	ProductName     string    `gorm:"column:product_name"`
	Quantity        int       `gorm:"column:quantity"`
	UnitPrice       float64   `gorm:"column:unit_price"`
	TotalPrice      float64   `gorm:"column:total_price"`
	Discount        float64   `gorm:"column:discount"`
	OrderedAt       time.Time `gorm:"column:ordered_at"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

// TableName maps LineItem to its table.
func (LineItem) TableName() string { return "line_items" }

// PredictedOrder is a heuristic projection of a store's next orders,
// upserted by (StoreExternalID, Horizon).
type PredictedOrder struct {
	StoreExternalID int64 `gorm:"column:store_external_id;primaryKey"`
	// Horizon is the 1-based projection step (1 = next expected order).
	Horizon     int       `gorm:"column:horizon;primaryKey"`
	PredictedAt time.Time `gorm:"column:predicted_at"`
	OrderDate   time.Time `gorm:"column:order_date"`
	Amount      float64   `gorm:"column:amount"`
	Confidence  float64   `gorm:"column:confidence"`
	SourceJobID string    `gorm:"column:source_job_id"`
}

// TableName maps PredictedOrder to its table.
func (PredictedOrder) TableName() string { return "predicted_orders" }

// SegmentLabel is the categorical bucket assigned to a store.
type SegmentLabel string

const (
	SegmentPremium SegmentLabel = "Premium"
	SegmentRegular SegmentLabel = "Regular"
	SegmentNew     SegmentLabel = "New"
)

// CustomerSegment is a store's segment assignment, upserted by store key.
type CustomerSegment struct {
	StoreExternalID int64        `gorm:"column:store_external_id;primaryKey"`
	Label           SegmentLabel `gorm:"column:label"`
	// OrderCount and TotalValue snapshot the inputs the label was derived from.
	OrderCount  int       `gorm:"column:order_count"`
	TotalValue  float64   `gorm:"column:total_value"`
	AssignedAt  time.Time `gorm:"column:assigned_at"`
	SourceJobID string    `gorm:"column:source_job_id"`
}

// TableName maps CustomerSegment to its table.
func (CustomerSegment) TableName() string { return "customer_segments" }

// OrderStat is one historical order of a store, aggregated from line items.
// It is the input unit of the prediction strategy.
type OrderStat struct {
	OrderRef  string
	OrderedAt time.Time
	Amount    float64
}

// StoreActivity summarizes a store's recent purchasing for segmentation.
type StoreActivity struct {
	StoreExternalID int64
	OrderCount      int
	TotalValue      float64
	// LastOrderedAt is the most recent order date; zero when no orders exist.
	LastOrderedAt time.Time
}

// SuggestionType categorizes the business rationale of a suggestion.
type SuggestionType string

const (
	SuggestionFrequentlyBoughtTogether SuggestionType = "frequently_bought_together"
	SuggestionPopularWithSimilar       SuggestionType = "popular_with_similar_customers"
	SuggestionSeasonal                 SuggestionType = "seasonal"
	SuggestionNewProduct               SuggestionType = "new_product"
)

// Suggestion is a scored upsell/cross-sell candidate for an order.
// Suggestions are computed on demand and never persisted by the cascade.
type Suggestion struct {
	ProductSKU      int64          `json:"product_sku"`
	ProductName     string         `json:"product_name"`
	Type            SuggestionType `json:"type"`
	Confidence      float64        `json:"confidence"`
	Reason          string         `json:"reason"`
	ExpectedRevenue float64        `json:"expected_revenue"`
}
