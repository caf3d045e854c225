// Package validator implements the per-row schema and type checks of the
// ingestion pipeline. Validation is side-effect free: a rejected row is
// reported, counted against the circuit breaker, and the job continues.
package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// dateLayouts are the invoice date formats accepted from source files.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02-Jan-2006",
}

// RowValidator validates pre-parsed source rows into RawRecords.
type RowValidator struct{}

// NewRowValidator creates a new RowValidator.
func NewRowValidator() *RowValidator {
	return &RowValidator{}
}

// Validate checks one source row. On success it returns a RawRecord with
// coerced field values (identity and ownership columns are assigned by the
// batch writer); on failure it returns a RowError naming the first violation.
func (v *RowValidator) Validate(row model.SourceRow) (*model.RawRecord, *model.RowError) {
	reject := func(format string, a ...interface{}) (*model.RawRecord, *model.RowError) {
		return nil, &model.RowError{RowNumber: row.RowNumber, Reason: fmt.Sprintf(format, a...)}
	}

	invoiceID := strings.TrimSpace(row.InvoiceID)
	if invoiceID == "" {
		return reject("missing invoice id")
	}
	customer := strings.TrimSpace(row.CustomerName)
	if customer == "" {
		return reject("missing customer name")
	}
	item := strings.TrimSpace(row.ItemName)
	if item == "" {
		return reject("missing item name")
	}

	price, err := parseCurrency(row.ItemPrice)
	if err != nil {
		return reject("invalid item price %q", row.ItemPrice)
	}
	if price < 0 {
		return reject("negative item price %v", price)
	}

	qty, err := strconv.Atoi(strings.TrimSpace(row.Quantity))
	if err != nil {
		return reject("invalid quantity %q", row.Quantity)
	}
	if qty <= 0 {
		return reject("non-positive quantity %d", qty)
	}

	total := price * float64(qty)
	if strings.TrimSpace(row.Total) != "" {
		total, err = parseCurrency(row.Total)
		if err != nil {
			return reject("invalid total %q", row.Total)
		}
	}

	var invoiceDate time.Time
	if raw := strings.TrimSpace(row.InvoiceDate); raw != "" {
		invoiceDate, err = parseDate(raw)
		if err != nil {
			return reject("invalid invoice date %q", row.InvoiceDate)
		}
	}

	return &model.RawRecord{
		ID:           uuid.New().String(),
		RowNumber:    row.RowNumber,
		InvoiceID:    invoiceID,
		CustomerName: customer,
		ItemName:     item,
		UnitPrice:    price,
		Quantity:     qty,
		Total:        total,
		InvoiceDate:  invoiceDate,
		CreatedAt:    time.Now(),
	}, nil
}

// parseCurrency coerces a currency-formatted string ("$1,234.50") to a float.
func parseCurrency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty currency value")
	}
	return strconv.ParseFloat(s, 64)
}

// parseDate tries the accepted invoice date layouts in order.
func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %s", raw)
}
