package http

import (
	"io"
	"net/http"

	"tally/internal/categories"
	"tally/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, categories.All())
}

const maxReceiptBytes = 5 << 20 // 5 MiB

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeJSONError(w, http.StatusNotImplemented, "receipt scanning is not configured")
		return
	}

	contentType := r.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		writeError(w, r, core.Validationf("unsupported receipt content type %q", contentType))
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBytes+1))
	if err != nil {
		writeError(w, r, core.Validationf("failed to read receipt image"))
		return
	}
	if len(image) > maxReceiptBytes {
		writeError(w, r, core.Validationf("receipt image too large (max 5 MiB)"))
		return
	}

	scan, err := s.scanner.Scan(r.Context(), image, contentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}
