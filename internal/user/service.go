// Package user はTelegramユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// Service はユーザー管理のサービス層。
// 初回接触時のユーザー作成と表示属性の差分更新を提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetOrCreate はTelegram IDでユーザーを取得し、存在しなければ作成する。
// 既存ユーザーの場合、表示属性に差分があるときのみ更新する（冪等）。
// 戻り値のcreatedは新規作成時にtrueとなる。認証トークンは作成時に
// 1度だけ払い出され、以降のレスポンスには含めない想定。
func (s *Service) GetOrCreate(ctx context.Context, telegramID int64, profile model.UserProfile) (*model.User, bool, error) {
	existing, err := s.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	if existing != nil {
		if existing.ProfileChanged(profile) {
			if err := s.userRepo.UpdateProfile(ctx, existing.ID, profile); err != nil {
				return nil, false, fmt.Errorf("表示属性の更新に失敗しました: %w", err)
			}
			existing.Username = profile.Username
			existing.FirstName = profile.FirstName
			existing.LastName = profile.LastName

			slog.Info("user profile refreshed",
				slog.String("user_id", existing.ID),
				slog.Int64("telegram_id", telegramID),
			)
		}
		return existing, false, nil
	}

	authToken, err := generateAuthToken()
	if err != nil {
		return nil, false, fmt.Errorf("認証トークンの生成に失敗しました: %w", err)
	}

	now := time.Now()
	newUser := &model.User{
		ID:         uuid.New().String(),
		TelegramID: telegramID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		IsActive:   true,
		AuthToken:  authToken,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, false, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.Int64("telegram_id", telegramID),
	)
	return newUser, true, nil
}

// generateAuthToken は暗号的に安全なユーザー認証トークンを生成する。
func generateAuthToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
