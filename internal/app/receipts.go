package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/pkg/objectstore"
	"github.com/idorocodes/paxify-backend/pkg/pdf"
)

// ObjectStore is where rendered receipts are kept.
type ObjectStore interface {
	Key(name string) string
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	KeyFromURL(publicURL string) (string, bool)
}

// ReceiptService renders receipts and stores them in the object store when one
// is configured. Without one, the receipt URL points at the API download route,
// which renders on demand.
type ReceiptService struct {
	objects       ObjectStore
	publicBaseURL string
	logger        *zap.Logger
}

// NewReceiptService builds a receipt service. objects may be nil.
func NewReceiptService(objects ObjectStore, publicBaseURL string, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{
		objects:       objects,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With(zap.String("component", "receipts")),
	}
}

// Render produces the receipt PDF.
func (s *ReceiptService) Render(data domain.ReceiptData) ([]byte, error) {
	items := make([]pdf.LineItem, 0, len(data.Items))
	for _, item := range data.Items {
		items = append(items, pdf.LineItem{Label: item.Name, Amount: item.Amount})
	}
	return pdf.RenderReceipt(pdf.Receipt{
		Reference:    data.Reference,
		PaidAt:       data.PaidAt,
		PayerName:    data.PayerName,
		PayerEmail:   data.PayerEmail,
		MatricNumber: data.MatricNumber,
		Department:   data.Department,
		Channel:      data.Channel,
		Currency:     data.Currency,
		Items:        items,
		Total:        data.Total,
	})
}

// Generate stores the receipt and returns the URL clients fetch it from.
func (s *ReceiptService) Generate(ctx context.Context, data domain.ReceiptData) (string, error) {
	if s.objects == nil {
		return s.downloadURL(data), nil
	}

	doc, err := s.Render(data)
	if err != nil {
		return "", err
	}
	key := s.objects.Key(data.Reference + ".pdf")
	url, err := s.objects.Put(ctx, key, bytes.NewReader(doc), "application/pdf")
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	s.logger.Info("receipt stored", zap.String("reference", data.Reference), zap.String("key", key))
	return url, nil
}

// Document returns the stored receipt when receiptURL points into the object
// store, and renders a fresh copy otherwise.
func (s *ReceiptService) Document(ctx context.Context, data domain.ReceiptData, receiptURL string) ([]byte, error) {
	if s.objects != nil && receiptURL != "" {
		if key, ok := s.objects.KeyFromURL(receiptURL); ok {
			doc, err := s.fetch(ctx, key)
			if err == nil {
				return doc, nil
			}
			level := s.logger.Warn
			if errors.Is(err, objectstore.ErrObjectNotFound) {
				level = s.logger.Info
			}
			level("stored receipt unavailable, rendering", zap.String("key", key), zap.Error(err))
		}
	}
	return s.Render(data)
}

func (s *ReceiptService) fetch(ctx context.Context, key string) ([]byte, error) {
	body, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *ReceiptService) downloadURL(data domain.ReceiptData) string {
	return fmt.Sprintf("%s/api/payments/%s/receipt", s.publicBaseURL, data.PaymentID)
}
