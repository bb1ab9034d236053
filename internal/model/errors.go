package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, source, report, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodeInvalidURL             = "INVALID_URL"
	ErrCodeInvalidSourceType      = "INVALID_SOURCE_TYPE"
	ErrCodeInvalidWeek            = "INVALID_WEEK"
	ErrCodeInvalidDate            = "INVALID_DATE"
	ErrCodeInvalidParameter       = "INVALID_PARAMETER"
	ErrCodeSourceNotFound         = "SOURCE_NOT_FOUND"
	ErrCodeReportNotFound         = "REPORT_NOT_FOUND"
	ErrCodeDuplicateSource        = "DUPLICATE_SOURCE"
	ErrCodeIngestFailed           = "INGEST_FAILED"
	ErrCodeReportGenerationFailed = "REPORT_GENERATION_FAILED"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// NewUnauthorizedError は管理APIキー不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "x-api-key ヘッダーに正しい管理APIキーを指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "必須項目（name、type、url）を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "公開されている http:// または https:// のURLを指定してください。",
	}
}

// NewInvalidSourceTypeError は未知のソース種別エラーを生成する。
func NewInvalidSourceTypeError(sourceType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSourceType,
		Message:  fmt.Sprintf("無効なソース種別です: %s", sourceType),
		Category: "validation",
		Action:   "type には rss または blog を指定してください。",
	}
}

// NewInvalidWeekError は週番号・年の範囲外エラーを生成する。
func NewInvalidWeekError(week, year int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWeek,
		Message:  fmt.Sprintf("無効な週指定です: week=%d year=%d", week, year),
		Category: "validation",
		Action:   "week は 1〜53、year は 2000〜9999 の範囲で指定してください。",
	}
}

// NewInvalidDateError は日付パラメータの解析失敗エラーを生成する。
func NewInvalidDateError(param, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付の形式が不正です: %s=%s", param, value),
		Category: "validation",
		Action:   "YYYY-MM-DD または RFC3339 形式で指定してください。",
	}
}

// NewInvalidParameterError は数値などのクエリパラメータの解析失敗エラーを生成する。
func NewInvalidParameterError(param, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("パラメータの形式が不正です: %s=%s", param, value),
		Category: "validation",
		Action:   "パラメータの値を確認してください。",
	}
}

// NewSourceNotFoundError はソース未検出エラーを生成する。
func NewSourceNotFoundError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("Source not found: %s", sourceID),
		Category: "source",
		Action:   "ソースIDを確認してください。",
	}
}

// NewReportNotFoundError はレポート未検出エラーを生成する。
func NewReportNotFoundError(reportID string) *APIError {
	return &APIError{
		Code:     ErrCodeReportNotFound,
		Message:  fmt.Sprintf("Report not found: %s", reportID),
		Category: "report",
		Action:   "レポートIDを確認してください。",
	}
}

// NewDuplicateSourceError は登録済みURLの重複エラーを生成する。
func NewDuplicateSourceError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSource,
		Message:  fmt.Sprintf("このURLのソースは既に登録されています: %s", url),
		Category: "source",
		Action:   "ソース一覧から該当ソースを確認してください。",
	}
}

// NewIngestFailedError は取り込み処理の失敗エラーを生成する。
// 原因のメッセージをそのまま利用者に返す。
func NewIngestFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeIngestFailed,
		Message:  cause.Error(),
		Category: "system",
		Action:   "ログを確認し、しばらく待ってから再度お試しください。",
	}
}

// NewReportGenerationFailedError はレポート生成の失敗エラーを生成する。
func NewReportGenerationFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeReportGenerationFailed,
		Message:  cause.Error(),
		Category: "system",
		Action:   "ログを確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
