package auth

import (
	"context"
	"crypto/hmac"
	"fmt"
	"log/slog"

	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// Token は発行済みのベアラートークンを表す。
type Token struct {
	AccessToken string
	TokenType   string // 常に "bearer"
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	issuer   *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, issuer *TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		issuer:   issuer,
	}
}

// Authenticate はTelegram IDと認証トークンを照合し、ベアラートークンを発行する。
// ユーザー不在はUSER_NOT_FOUND、無効化済みはINACTIVE_USER、
// 秘密値の不一致はAUTHENTICATION_FAILEDを返す。
func (s *Service) Authenticate(ctx context.Context, telegramID int64, authToken string) (*Token, error) {
	user, err := s.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.IsActive {
		return nil, model.NewInactiveUserError()
	}

	// タイミング攻撃を避けるため定数時間で比較する
	if !hmac.Equal([]byte(user.AuthToken), []byte(authToken)) {
		slog.Warn("authentication failed",
			slog.Int64("telegram_id", telegramID),
		)
		return nil, model.NewAuthenticationFailedError()
	}

	accessToken, err := s.issuer.Issue(telegramID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	slog.Info("access token issued",
		slog.Int64("telegram_id", telegramID),
	)
	return &Token{AccessToken: accessToken, TokenType: "bearer"}, nil
}

// Resolve はベアラートークンを検証し、対応するユーザーを返す。
// トークン不正はINVALID_TOKEN、ユーザー不在はUSER_NOT_FOUND、
// 無効化済みはINACTIVE_USERを返す。
func (s *Service) Resolve(ctx context.Context, tokenString string) (*model.User, error) {
	telegramID, err := s.issuer.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.IsActive {
		return nil, model.NewInactiveUserError()
	}

	return user, nil
}
