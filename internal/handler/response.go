package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/foodmark/internal/catalog"
	"github.com/hitoshi/foodmark/internal/middleware"
	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/validation"
)

// errCatalogUnavailable はカタログの読み込み元がすべて失敗した場合のエラー。
var errCatalogUnavailable = &model.APIError{
	Code:     "CATALOG_UNAVAILABLE",
	Message:  "料理データを読み込めませんでした。",
	Category: "catalog",
	Action:   "しばらく待ってから再度お試しください。",
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをデコードする。失敗時はINVALID_REQUESTを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := dec.Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// maxRequestBodySize はJSONリクエストボディの上限バイト数。
const maxRequestBodySize = 64 << 10

// validItemID は料理IDの形式を検証する。不正な場合はINVALID_REQUESTを書き込みfalseを返す。
func validItemID(w http.ResponseWriter, itemID string) bool {
	if err := validation.Get().Var(itemID, "notblank,max=100"); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("料理IDが不正です"))
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var gwErr *model.GatewayError
	if errors.As(err, &gwErr) {
		// 原因はログにのみ残す
		slog.Error("gateway failure",
			slog.String("op", gwErr.Op),
			slog.String("list", string(gwErr.List)),
			slog.String("error", gwErr.Err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewGatewayFailedError())
		return
	}

	if errors.Is(err, catalog.ErrCatalogUnavailable) {
		slog.Error("catalog unavailable", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, errCatalogUnavailable)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case model.ErrCodeGatewayFailed:
		return http.StatusBadGateway
	case model.ErrCodeInvalidRating, model.ErrCodeNoteTooLong, model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidScope, model.ErrCodeInvalidSubmission:
		return http.StatusBadRequest
	case model.ErrCodeItemNotFound, model.ErrCodeEntryNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeNoCandidates:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// requireUserID はコンテキストからユーザーIDを取り出す。無ければ401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.ErrAuthRequired)
		return "", false
	}
	return userID, true
}
