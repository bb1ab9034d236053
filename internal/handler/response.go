package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hitoshi/execdash/internal/middleware"
	"github.com/hitoshi/execdash/internal/model"
)

// dataResponse は成功レスポンスの共通エンベロープ。
type dataResponse struct {
	Data any `json:"data"`
}

// paginationResponse は一覧レスポンスのページング情報。
type paginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// listResponse は一覧レスポンスの共通エンベロープ。
type listResponse struct {
	Data       any                `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeData は {"data": ...} 形式のレスポンスを書き込む。
func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, dataResponse{Data: data})
}

// writeList は {"data": [...], "pagination": {...}} 形式のレスポンスを書き込む。
func writeList(w http.ResponseWriter, data any, total, limit, offset int) {
	writeJSON(w, http.StatusOK, listResponse{
		Data:       data,
		Pagination: paginationResponse{Total: total, Limit: limit, Offset: offset},
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError は下位層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外のエラーは詳細をログに記録し、一般的な500を返す。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed, model.ErrCodeInvalidURL,
		model.ErrCodeInvalidSourceType, model.ErrCodeInvalidWeek, model.ErrCodeInvalidDate,
		model.ErrCodeInvalidParameter:
		return http.StatusBadRequest
	case model.ErrCodeSourceNotFound, model.ErrCodeReportNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateSource:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONBody はリクエストボディをvに読み込む。
// 空のボディは許可し、vを変更せずにnilを返す。
func decodeJSONBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// parsePaging はlimit・offsetクエリを解析する。
// 不正値や範囲外の値はデフォルト値、上限値、0に丸める。
func parsePaging(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// isValidID はパスパラメータがUUID形式かを返す。
// UUID以外のIDは存在しないものとして扱う。
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
