// Package pdf renders payment receipts and revenue reports.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const brand = "Paxify"

// LineItem is one row of a receipt or a report table.
type LineItem struct {
	Label  string
	Count  int
	Amount decimal.Decimal
}

// Receipt is the content of a payment receipt.
type Receipt struct {
	Reference    string
	PaidAt       time.Time
	PayerName    string
	PayerEmail   string
	MatricNumber string
	Department   string
	Channel      string
	Currency     string
	Items        []LineItem
	Total        decimal.Decimal
}

// RevenueReport is the content of an admin revenue report.
type RevenueReport struct {
	StartDate     time.Time
	EndDate       time.Time
	GeneratedAt   time.Time
	Currency      string
	Total         decimal.Decimal
	PaymentCount  int
	Daily         []LineItem
	ByFeeCategory []LineItem
}

// FormatAmount renders 8000 as "NGN 8,000.00".
func FormatAmount(currency string, amount decimal.Decimal) string {
	if currency == "" {
		currency = "NGN"
	}
	fixed := amount.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	whole, frac, _ := strings.Cut(fixed, ".")
	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s %s%s.%s", currency, sign, grouped.String(), frac)
}

func newDocument(title string) *fpdf.Fpdf {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, false)
	doc.SetAuthor(brand, false)
	doc.SetMargins(18, 18, 18)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(20, 60, 120)
	doc.CellFormat(0, 10, brand, "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.SetTextColor(90, 90, 90)
	doc.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)
	return doc
}

func keyValue(doc *fpdf.Fpdf, key, value string) {
	if value == "" {
		return
	}
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(45, 7, key, "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
}

func table(doc *fpdf.Fpdf, headers []string, widths []float64, rows [][]string) {
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 236, 245)
	for i, header := range headers {
		align := "L"
		if i == len(headers)-1 {
			align = "R"
		}
		doc.CellFormat(widths[i], 8, header, "1", 0, align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			align := "L"
			if i == len(row)-1 {
				align = "R"
			}
			doc.CellFormat(widths[i], 7, cell, "1", 0, align, false, 0, "")
		}
		doc.Ln(-1)
	}
}

func output(doc *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderReceipt produces the PDF bytes for a completed payment.
func RenderReceipt(r Receipt) ([]byte, error) {
	if r.Reference == "" {
		return nil, fmt.Errorf("receipt reference is required")
	}
	doc := newDocument("Payment Receipt")

	keyValue(doc, "Reference", r.Reference)
	keyValue(doc, "Date paid", r.PaidAt.Format("02 Jan 2006 15:04 MST"))
	keyValue(doc, "Paid by", r.PayerName)
	keyValue(doc, "Matric number", r.MatricNumber)
	keyValue(doc, "Department", r.Department)
	keyValue(doc, "Email", r.PayerEmail)
	keyValue(doc, "Channel", r.Channel)
	doc.Ln(4)

	rows := make([][]string, 0, len(r.Items))
	for i, item := range r.Items {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), item.Label, FormatAmount(r.Currency, item.Amount)})
	}
	table(doc, []string{"#", "Fee", "Amount"}, []float64{12, 108, 54}, rows)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(120, 9, "Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(54, 9, FormatAmount(r.Currency, r.Total), "1", 1, "R", false, 0, "")

	doc.Ln(8)
	doc.SetFont("Helvetica", "I", 9)
	doc.SetTextColor(110, 110, 110)
	doc.MultiCell(0, 5, "This receipt was generated electronically and is valid without a signature.", "", "L", false)

	return output(doc)
}

// RenderRevenueReport produces the PDF bytes for a revenue report.
func RenderRevenueReport(r RevenueReport) ([]byte, error) {
	doc := newDocument("Revenue Report")

	keyValue(doc, "Period", fmt.Sprintf("%s to %s", r.StartDate.Format("02 Jan 2006"), r.EndDate.Format("02 Jan 2006")))
	keyValue(doc, "Generated", r.GeneratedAt.Format("02 Jan 2006 15:04 MST"))
	keyValue(doc, "Payments", fmt.Sprintf("%d", r.PaymentCount))
	keyValue(doc, "Total revenue", FormatAmount(r.Currency, r.Total))
	doc.Ln(4)

	section := func(title, label string, items []LineItem) {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{item.Label, fmt.Sprintf("%d", item.Count), FormatAmount(r.Currency, item.Amount)})
		}
		if len(rows) == 0 {
			rows = append(rows, []string{"No completed payments", "0", FormatAmount(r.Currency, decimal.Zero)})
		}
		table(doc, []string{label, "Payments", "Amount"}, []float64{90, 30, 54}, rows)
		doc.Ln(6)
	}

	section("Daily revenue", "Date", r.Daily)
	section("Revenue by fee category", "Fee category", r.ByFeeCategory)

	return output(doc)
}
