package user

import (
	"context"
	"testing"

	"github.com/hitoshi/habitman/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByTelegramIDFn func(ctx context.Context, telegramID int64) (*model.User, error)
	createFn           func(ctx context.Context, user *model.User) error
	updateProfileFn    func(ctx context.Context, id string, profile model.UserProfile) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	if m.findByTelegramIDFn != nil {
		return m.findByTelegramIDFn(ctx, telegramID)
	}
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, id string, profile model.UserProfile) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, profile)
	}
	return nil
}
func (m *mockUserRepo) ListActive(ctx context.Context) ([]*model.User, error) {
	return nil, nil
}

// --- テスト ---

// 初回接触時にユーザーが作成され、認証トークンが払い出されることを検証
func TestService_GetOrCreate_CreatesNewUser(t *testing.T) {
	var saved *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			saved = user
			return nil
		},
	}
	svc := NewService(repo)

	u, created, err := svc.GetOrCreate(context.Background(), 123456789, model.UserProfile{
		Username:  "alice",
		FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	if !created {
		t.Error("expected created = true")
	}
	if saved == nil {
		t.Fatal("expected user to be persisted")
	}
	if u.TelegramID != 123456789 {
		t.Errorf("TelegramID = %d, want 123456789", u.TelegramID)
	}
	if !u.IsActive {
		t.Error("expected IsActive = true")
	}
	if u.AuthToken == "" {
		t.Error("expected non-empty AuthToken")
	}
	if u.Username != "alice" {
		t.Errorf("Username = %q, want %q", u.Username, "alice")
	}
}

// 表示属性が同一の2回目の呼び出しで書き込みが発生しないことを検証
func TestService_GetOrCreate_UnchangedProfile_NoWrites(t *testing.T) {
	existing := &model.User{
		ID:         "user-1",
		TelegramID: 123456789,
		Username:   "alice",
		FirstName:  "Alice",
		IsActive:   true,
		AuthToken:  "secret",
	}

	createCalled := false
	updateCalled := false
	repo := &mockUserRepo{
		findByTelegramIDFn: func(ctx context.Context, telegramID int64) (*model.User, error) {
			return existing, nil
		},
		createFn: func(ctx context.Context, user *model.User) error {
			createCalled = true
			return nil
		},
		updateProfileFn: func(ctx context.Context, id string, profile model.UserProfile) error {
			updateCalled = true
			return nil
		},
	}
	svc := NewService(repo)

	u, created, err := svc.GetOrCreate(context.Background(), 123456789, model.UserProfile{
		Username:  "alice",
		FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	if created {
		t.Error("expected created = false")
	}
	if createCalled || updateCalled {
		t.Error("expected zero writes for unchanged profile")
	}
	if u.ID != "user-1" {
		t.Errorf("ID = %q, want %q", u.ID, "user-1")
	}
}

// 表示属性に差分がある場合のみ更新されることを検証
func TestService_GetOrCreate_ChangedProfile_UpdatesFields(t *testing.T) {
	existing := &model.User{
		ID:         "user-1",
		TelegramID: 123456789,
		Username:   "alice",
		FirstName:  "Alice",
		IsActive:   true,
	}

	var updatedProfile *model.UserProfile
	repo := &mockUserRepo{
		findByTelegramIDFn: func(ctx context.Context, telegramID int64) (*model.User, error) {
			return existing, nil
		},
		updateProfileFn: func(ctx context.Context, id string, profile model.UserProfile) error {
			updatedProfile = &profile
			return nil
		},
	}
	svc := NewService(repo)

	u, created, err := svc.GetOrCreate(context.Background(), 123456789, model.UserProfile{
		Username:  "alice_new",
		FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	if created {
		t.Error("expected created = false")
	}
	if updatedProfile == nil {
		t.Fatal("expected UpdateProfile to be called")
	}
	if updatedProfile.Username != "alice_new" {
		t.Errorf("Username = %q, want %q", updatedProfile.Username, "alice_new")
	}
	if u.Username != "alice_new" {
		t.Errorf("returned Username = %q, want %q", u.Username, "alice_new")
	}
}
