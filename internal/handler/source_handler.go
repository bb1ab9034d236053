package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/repository"
)

// SourceStore はソース管理ハンドラーが必要とする永続化インターフェース。
type SourceStore interface {
	ListWithCounts(ctx context.Context) ([]model.SourceWithCount, error)
	FindByID(ctx context.Context, id string) (*model.Source, error)
	FindByURL(ctx context.Context, url string) (*model.Source, error)
	Create(ctx context.Context, source *model.Source) error
	Update(ctx context.Context, source *model.Source) error
	Delete(ctx context.Context, id string) error
}

// URLValidator はソースURLの静的検証を行う。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// SourceHandler はソース管理のHTTPハンドラー。
type SourceHandler struct {
	store     SourceStore
	validator URLValidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(store SourceStore, validator URLValidator, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{
		store:     store,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// createSourceRequest はソース作成リクエストのボディ。
type createSourceRequest struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	URL           string `json:"url"`
	CategoryHint  string `json:"categoryHint"`
	Enabled       *bool  `json:"enabled"`
	FetchInterval *int   `json:"fetchInterval"`
}

// updateSourceRequest はソース部分更新リクエストのボディ。省略した項目は変更しない。
type updateSourceRequest struct {
	Name          *string `json:"name"`
	Type          *string `json:"type"`
	URL           *string `json:"url"`
	CategoryHint  *string `json:"categoryHint"`
	Enabled       *bool   `json:"enabled"`
	FetchInterval *int    `json:"fetchInterval"`
}

// sourceResponse はソース情報のAPIレスポンス。
type sourceResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	URL           string     `json:"url"`
	CategoryHint  *string    `json:"categoryHint"`
	Enabled       bool       `json:"enabled"`
	FetchInterval int        `json:"fetchInterval"`
	LastFetchedAt *time.Time `json:"lastFetchedAt"`
	FailureCount  int        `json:"failureCount"`
	ArticleCount  *int       `json:"articleCount,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ListSources はソース一覧を名前順で記事件数付きで返す。
// GET /api/admin/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListWithCounts(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]sourceResponse, 0, len(sources))
	for i := range sources {
		count := sources[i].ArticleCount
		sr := toSourceResponse(&sources[i].Source)
		sr.ArticleCount = &count
		resp = append(resp, sr)
	}

	writeData(w, http.StatusOK, resp)
}

// CreateSource はソースを登録する。
// POST /api/admin/sources
func (h *SourceHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	name := strings.TrimSpace(req.Name)
	rawURL := strings.TrimSpace(req.URL)
	if name == "" || req.Type == "" || rawURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Missing required fields: name, type, url"))
		return
	}

	sourceType := model.SourceType(req.Type)
	if !sourceType.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidSourceTypeError(req.Type))
		return
	}

	if err := h.validator.ValidateURL(rawURL); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
		return
	}

	interval := model.DefaultFetchIntervalMinutes
	if req.FetchInterval != nil {
		if *req.FetchInterval <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("fetchInterval must be a positive number of minutes"))
			return
		}
		interval = *req.FetchInterval
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	existing, err := h.store.FindByURL(r.Context(), rawURL)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateSourceError(rawURL))
		return
	}

	now := h.now().UTC()
	source := &model.Source{
		ID:            uuid.New().String(),
		Name:          name,
		Type:          sourceType,
		URL:           rawURL,
		CategoryHint:  strings.TrimSpace(req.CategoryHint),
		Enabled:       enabled,
		FetchInterval: interval,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.Create(r.Context(), source); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateSourceError(rawURL))
			return
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("ソースを登録しました",
		slog.String("source_id", source.ID),
		slog.String("source_url", source.URL),
	)

	writeData(w, http.StatusCreated, toSourceResponse(source))
}

// UpdateSource はソースを部分更新する。
// PATCH /api/admin/sources/{id}
func (h *SourceHandler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isValidID(id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(id))
		return
	}

	var req updateSourceRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	patch, apiErr := h.buildPatch(req)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	source, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if source == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(id))
		return
	}

	patch.Apply(source)
	source.UpdatedAt = h.now().UTC()

	if err := h.store.Update(r.Context(), source); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(id))
		case errors.Is(err, repository.ErrDuplicate):
			writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateSourceError(source.URL))
		default:
			handleServiceError(w, h.logger, err)
		}
		return
	}

	writeData(w, http.StatusOK, toSourceResponse(source))
}

// buildPatch は更新リクエストを検証してSourcePatchに変換する。
func (h *SourceHandler) buildPatch(req updateSourceRequest) (model.SourcePatch, *model.APIError) {
	var patch model.SourcePatch

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return patch, model.NewValidationError("name must not be empty")
		}
		patch.Name = &name
	}
	if req.Type != nil {
		t := model.SourceType(*req.Type)
		if !t.IsValid() {
			return patch, model.NewInvalidSourceTypeError(*req.Type)
		}
		patch.Type = &t
	}
	if req.URL != nil {
		u := strings.TrimSpace(*req.URL)
		if err := h.validator.ValidateURL(u); err != nil {
			return patch, model.NewInvalidURLError(err.Error())
		}
		patch.URL = &u
	}
	if req.CategoryHint != nil {
		hint := strings.TrimSpace(*req.CategoryHint)
		patch.CategoryHint = &hint
	}
	if req.FetchInterval != nil {
		if *req.FetchInterval <= 0 {
			return patch, model.NewValidationError("fetchInterval must be a positive number of minutes")
		}
		patch.FetchInterval = req.FetchInterval
	}
	patch.Enabled = req.Enabled

	return patch, nil
}

// DeleteSource はソースを削除する。記事も併せて削除される。
// DELETE /api/admin/sources/{id}
func (h *SourceHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isValidID(id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(id))
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(id))
			return
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("ソースを削除しました", slog.String("source_id", id))

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// toSourceResponse はmodel.SourceからAPIレスポンスに変換する。
func toSourceResponse(s *model.Source) sourceResponse {
	var hint *string
	if s.CategoryHint != "" {
		h := s.CategoryHint
		hint = &h
	}
	return sourceResponse{
		ID:            s.ID,
		Name:          s.Name,
		Type:          string(s.Type),
		URL:           s.URL,
		CategoryHint:  hint,
		Enabled:       s.Enabled,
		FetchInterval: s.FetchInterval,
		LastFetchedAt: s.LastFetchedAt,
		FailureCount:  s.FailureCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
