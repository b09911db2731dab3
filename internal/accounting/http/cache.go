package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finreports/internal/platform/httpx"
)

// ResponseCache stores encoded report payloads between requests.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// cacheKey identifies a JSON report by path and canonical query.
func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.Query().Encode()
}

// serveCached writes a cached payload and reports whether it did.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request) bool {
	if h.cache == nil {
		return false
	}
	data, ok, err := h.cache.Get(r.Context(), cacheKey(r))
	if err != nil {
		h.logger.Warn("report cache read failed", slog.Any("error", err))
		return false
	}
	if !ok {
		return false
	}
	w.Header().Set("X-Cache", "HIT")
	h.writeEnvelope(w, json.RawMessage(data))
	return true
}

func (h *Handler) store(r *http.Request, data []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(r.Context(), cacheKey(r), data); err != nil {
		h.logger.Warn("report cache write failed", slog.Any("error", err))
	}
}

func (h *Handler) writeEnvelope(w http.ResponseWriter, data json.RawMessage) {
	reportID := uuid.NewString()
	w.Header().Set("X-Report-ID", reportID)
	httpx.JSON(w, http.StatusOK, Envelope{ReportID: reportID, Data: data})
}
