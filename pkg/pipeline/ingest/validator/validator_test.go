package validator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
	"github.com/tigerroll/cascade/pkg/pipeline/ingest/validator"
)

func validRow() model.SourceRow {
	return model.SourceRow{
		RowNumber:    1,
		InvoiceID:    "INV-1001",
		CustomerName: "Sharma General Store",
		ItemName:     "Aashirvaad Atta Flour 5kg",
		ItemPrice:    "$1,234.50",
		Quantity:     "3",
		Total:        "",
		InvoiceDate:  "2025-03-15",
	}
}

func TestValidateAcceptsWellFormedRow(t *testing.T) {
	v := validator.NewRowValidator()

	rec, rowErr := v.Validate(validRow())
	require.Nil(t, rowErr)
	require.NotNil(t, rec)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, rec.RowNumber)
	assert.Equal(t, "INV-1001", rec.InvoiceID)
	assert.Equal(t, "Sharma General Store", rec.CustomerName)
	assert.Equal(t, 1234.50, rec.UnitPrice)
	assert.Equal(t, 3, rec.Quantity)
	// Total defaults to price * quantity when the source omits it.
	assert.InDelta(t, 3703.50, rec.Total, 0.001)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), rec.InvoiceDate)
}

func TestValidateExplicitTotalWins(t *testing.T) {
	v := validator.NewRowValidator()
	row := validRow()
	row.Total = "$3,500.00"

	rec, rowErr := v.Validate(row)
	require.Nil(t, rowErr)
	assert.Equal(t, 3500.00, rec.Total)
}

func TestValidateRejections(t *testing.T) {
	v := validator.NewRowValidator()

	tests := []struct {
		name   string
		mutate func(*model.SourceRow)
		reason string
	}{
		{"missing invoice id", func(r *model.SourceRow) { r.InvoiceID = "  " }, "missing invoice id"},
		{"missing customer", func(r *model.SourceRow) { r.CustomerName = "" }, "missing customer name"},
		{"missing item", func(r *model.SourceRow) { r.ItemName = "" }, "missing item name"},
		{"garbage price", func(r *model.SourceRow) { r.ItemPrice = "abc" }, "invalid item price"},
		{"negative price", func(r *model.SourceRow) { r.ItemPrice = "-5.00" }, "negative item price"},
		{"garbage quantity", func(r *model.SourceRow) { r.Quantity = "three" }, "invalid quantity"},
		{"zero quantity", func(r *model.SourceRow) { r.Quantity = "0" }, "non-positive quantity"},
		{"garbage total", func(r *model.SourceRow) { r.Total = "n/a" }, "invalid total"},
		{"garbage date", func(r *model.SourceRow) { r.InvoiceDate = "15th of March" }, "invalid invoice date"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := validRow()
			tc.mutate(&row)

			rec, rowErr := v.Validate(row)
			assert.Nil(t, rec)
			require.NotNil(t, rowErr)
			assert.Equal(t, row.RowNumber, rowErr.RowNumber)
			assert.Contains(t, rowErr.Reason, tc.reason)
		})
	}
}

func TestValidateAcceptsAllDateLayouts(t *testing.T) {
	v := validator.NewRowValidator()

	for _, raw := range []string{"2025-03-15", "2025-03-15 10:30:00", "03/15/2025", "15-Mar-2025"} {
		row := validRow()
		row.InvoiceDate = raw

		rec, rowErr := v.Validate(row)
		require.Nil(t, rowErr, "date %q should be accepted", raw)
		assert.False(t, rec.InvoiceDate.IsZero())
	}
}

func TestValidateEmptyDateIsAllowed(t *testing.T) {
	v := validator.NewRowValidator()
	row := validRow()
	row.InvoiceDate = ""

	rec, rowErr := v.Validate(row)
	require.Nil(t, rowErr)
	assert.True(t, rec.InvoiceDate.IsZero())
}
