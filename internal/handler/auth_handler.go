package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/habitman/internal/auth"
	"github.com/hitoshi/habitman/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Authenticate はTelegram IDと認証トークンを検証し、アクセストークンを発行する。
	Authenticate(ctx context.Context, telegramID int64, authToken string) (*auth.Token, error)
}

// UserServiceInterface はユーザー登録ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetOrCreate はTelegram IDでユーザーを取得、存在しなければ作成する。
	GetOrCreate(ctx context.Context, telegramID int64, profile model.UserProfile) (*model.User, bool, error)
}

// AuthHandler は認証・登録のHTTPハンドラー。
type AuthHandler struct {
	authService AuthServiceInterface
	userService UserServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, userService UserServiceInterface) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// telegramAuthRequest はトークン発行リクエストのボディ。
type telegramAuthRequest struct {
	TelegramID int64  `json:"telegram_id"`
	AuthToken  string `json:"auth_token"`
}

// tokenResponse はトークン発行のAPIレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// registerResponse はユーザー登録のAPIレスポンス。
// AuthTokenは初回登録時のみ返す。
type registerResponse struct {
	ID         string `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	IsActive   bool   `json:"is_active"`
	AuthToken  string `json:"auth_token,omitempty"`
}

// TelegramAuth はTelegram IDと認証トークンからアクセストークンを発行する。
// POST /api/auth/telegram
func (h *AuthHandler) TelegramAuth(w http.ResponseWriter, r *http.Request) {
	var req telegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.TelegramID == 0 || req.AuthToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("telegram_idとauth_tokenは必須です"))
		return
	}

	token, err := h.authService.Authenticate(r.Context(), req.TelegramID, req.AuthToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	})
}

// Register はTelegramユーザーを登録する。既存ユーザーの場合はプロフィールを同期する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.TelegramID == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("telegram_idは必須です"))
		return
	}

	user, created, err := h.userService.GetOrCreate(r.Context(), req.TelegramID, model.UserProfile{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := registerResponse{
		ID:         user.ID,
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		IsActive:   user.IsActive,
	}

	statusCode := http.StatusOK
	if created {
		// 認証トークンは初回登録時のみレスポンスに含める
		resp.AuthToken = user.AuthToken
		statusCode = http.StatusCreated
	}

	writeJSON(w, statusCode, resp)
}
