package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/worker/fetch"
)

// SingleSourceFetcher は1件のソースを取り込む。
type SingleSourceFetcher interface {
	FetchSource(ctx context.Context, sourceID string) (*fetch.FetchResult, error)
}

// DueSourcesFetcher は取得期限を過ぎた全ソースを取り込む。
type DueSourcesFetcher interface {
	FetchAllSources(ctx context.Context) ([]*fetch.FetchResult, error)
}

// IngestHandler は取り込みジョブを起動するHTTPハンドラー。
type IngestHandler struct {
	single SingleSourceFetcher
	due    DueSourcesFetcher
	logger *slog.Logger
}

// NewIngestHandler はIngestHandlerを生成する。
func NewIngestHandler(single SingleSourceFetcher, due DueSourcesFetcher, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{single: single, due: due, logger: logger}
}

// ingestRequest は取り込みリクエストのボディ。sourceId省略時は全ソースが対象。
type ingestRequest struct {
	SourceID string `json:"sourceId"`
}

// Ingest は取り込みを同期実行し、結果を返す。
// POST /api/ingest
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID != "" {
		if !isValidID(sourceID) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(sourceID))
			return
		}

		result, err := h.single.FetchSource(r.Context(), sourceID)
		if err != nil {
			h.writeIngestError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)
		return
	}

	results, err := h.due.FetchAllSources(r.Context())
	if err != nil {
		h.writeIngestError(w, err)
		return
	}
	if results == nil {
		results = []*fetch.FetchResult{}
	}
	writeData(w, http.StatusOK, results)
}

// writeIngestError は既知のAPIErrorはそのまま、それ以外はINGEST_FAILEDとして返す。
func (h *IngestHandler) writeIngestError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	h.logger.Error("取り込みに失敗しました", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewIngestFailedError(err))
}
