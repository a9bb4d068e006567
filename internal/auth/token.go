// Package auth はTelegram IDに基づく認証とJWTトークンの発行・検証を提供する。
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/habitman/internal/model"
)

// TokenIssuer はHS256署名のJWTを発行・検証する。
// subクレームにTelegram IDを持つ時限付きトークンを扱う。
type TokenIssuer struct {
	secretKey []byte
	expiry    time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secretKey string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		expiry:    expiry,
	}
}

// Issue は指定Telegram IDをsubject claimに持つ署名済みトークンを発行する。
func (i *TokenIssuer) Issue(telegramID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(telegramID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、subject claimのTelegram IDを返す。
// 不正・期限切れ・署名不一致のトークンにはINVALID_TOKENエラーを返す。
func (i *TokenIssuer) Verify(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secretKey, nil
	})
	if err != nil || !token.Valid {
		return 0, model.NewInvalidTokenError()
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, model.NewInvalidTokenError()
	}

	telegramID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, model.NewInvalidTokenError()
	}
	return telegramID, nil
}
