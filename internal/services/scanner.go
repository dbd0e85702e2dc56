package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tally/internal/core"
)

// ReceiptScan is the structured result of scanning a receipt image.
// Every field is best-effort; callers treat it as a form prefill.
type ReceiptScan struct {
	Amount       string `json:"amount"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	MerchantName string `json:"merchantName"`
}

// ReceiptScanner extracts transaction fields from a receipt image.
type ReceiptScanner interface {
	Scan(ctx context.Context, image []byte, contentType string) (*ReceiptScan, error)
}

// HTTPReceiptScanner calls an external extraction service over HTTP.
// Any transport or decoding failure surfaces as an upstream error so
// handlers can map it to a gateway failure instead of a server bug.
type HTTPReceiptScanner struct {
	baseURL string
	client  *http.Client
}

func NewHTTPReceiptScanner(baseURL string) *HTTPReceiptScanner {
	return &HTTPReceiptScanner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPReceiptScanner) Scan(ctx context.Context, image []byte, contentType string) (*ReceiptScan, error) {
	if len(image) == 0 {
		return nil, core.Validationf("empty receipt image")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/scan", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: scan service returned %d: %s", core.ErrUpstream, resp.StatusCode, body)
	}

	var scan ReceiptScan
	if err := json.NewDecoder(resp.Body).Decode(&scan); err != nil {
		return nil, fmt.Errorf("%w: decode scan response: %v", core.ErrUpstream, err)
	}
	return &scan, nil
}
