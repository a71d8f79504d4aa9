package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "NGN 8,000.00", FormatAmount("NGN", decimal.NewFromInt(8000)))
	assert.Equal(t, "NGN 1,234,567.50", FormatAmount("", decimal.RequireFromString("1234567.5")))
	assert.Equal(t, "NGN 999.00", FormatAmount("NGN", decimal.NewFromInt(999)))
	assert.Equal(t, "NGN -1,000.00", FormatAmount("NGN", decimal.NewFromInt(-1000)))
}

func TestRenderReceipt(t *testing.T) {
	out, err := RenderReceipt(Receipt{
		Reference:    "PAX-1700000000000-abcd1234",
		PaidAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		PayerName:    "Ada Obi",
		MatricNumber: "CSC/2021/001",
		Currency:     "NGN",
		Items: []LineItem{
			{Label: "Departmental dues", Amount: decimal.NewFromInt(5000)},
			{Label: "Excursion", Amount: decimal.NewFromInt(3000)},
		},
		Total: decimal.NewFromInt(8000),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderReceipt_RequiresReference(t *testing.T) {
	_, err := RenderReceipt(Receipt{})
	assert.Error(t, err)
}

func TestRenderRevenueReport_EmptyPeriod(t *testing.T) {
	out, err := RenderRevenueReport(RevenueReport{
		StartDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Now(),
		Total:       decimal.Zero,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
