package bot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenIssuerAPI はアクセストークンの発行インターフェース。
// api.Clientの部分集合として定義する。
type TokenIssuerAPI interface {
	IssueToken(ctx context.Context, telegramID int64, authToken string) (string, error)
}

// cachedAccessToken は有効期限付きのアクセストークン。
type cachedAccessToken struct {
	token     string
	expiresAt time.Time
}

// TokenManager はユーザーごとのアクセストークンを管理する。
// 認証トークン（長期秘密）はTokenStoreに永続化し、
// アクセストークン（短期JWT）はメモリ上にキャッシュする。
type TokenManager struct {
	store  *TokenStore
	issuer TokenIssuerAPI
	ttl    time.Duration

	mu    sync.Mutex
	cache map[int64]cachedAccessToken
}

// NewTokenManager はTokenManagerを生成する。
// ttlはアクセストークンのキャッシュ保持期間で、サーバー側の
// トークン有効期限より短く設定する。
func NewTokenManager(store *TokenStore, issuer TokenIssuerAPI, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 25 * time.Minute
	}
	return &TokenManager{
		store:  store,
		issuer: issuer,
		ttl:    ttl,
		cache:  make(map[int64]cachedAccessToken),
	}
}

// SaveAuthToken は認証トークンを永続化する。初回登録時に呼び出す。
func (m *TokenManager) SaveAuthToken(ctx context.Context, telegramID int64, authToken string) error {
	return m.store.Save(ctx, telegramID, authToken)
}

// HasAuthToken は認証トークンが保存済みかを返す。
func (m *TokenManager) HasAuthToken(ctx context.Context, telegramID int64) (bool, error) {
	token, err := m.store.Find(ctx, telegramID)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// AccessToken はユーザーのアクセストークンを返す。
// キャッシュが有効ならそれを返し、期限切れなら再発行する。
func (m *TokenManager) AccessToken(ctx context.Context, telegramID int64) (string, error) {
	m.mu.Lock()
	cached, ok := m.cache[telegramID]
	m.mu.Unlock()

	if ok && time.Now().Before(cached.expiresAt) {
		return cached.token, nil
	}

	authToken, err := m.store.Find(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if authToken == "" {
		return "", fmt.Errorf("認証トークンが未登録です: telegram_id=%d", telegramID)
	}

	accessToken, err := m.issuer.IssueToken(ctx, telegramID, authToken)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.cache[telegramID] = cachedAccessToken{
		token:     accessToken,
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()

	return accessToken, nil
}

// Invalidate はユーザーのアクセストークンキャッシュを破棄する。
// 401応答を受けた場合に呼び出し、次回のアクセスで再発行させる。
func (m *TokenManager) Invalidate(telegramID int64) {
	m.mu.Lock()
	delete(m.cache, telegramID)
	m.mu.Unlock()
}
