package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/habitman/internal/habit"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/model"
)

// mockHabitService はHabitServiceInterfaceのテスト用モック。
type mockHabitService struct {
	createFn           func(ctx context.Context, userID, title, description string) (*model.Habit, error)
	getFn              func(ctx context.Context, habitID string) (*model.Habit, error)
	listByUserFn       func(ctx context.Context, userID string) ([]*model.Habit, error)
	listActiveByUserFn func(ctx context.Context, userID string) ([]*model.Habit, error)
	updateFn           func(ctx context.Context, habitID string, upd model.HabitUpdate) (*model.Habit, error)
	deleteFn           func(ctx context.Context, habitID string) error
	completeFn         func(ctx context.Context, habitID string) (*model.Habit, error)
	statsFn            func(ctx context.Context, userID string) (*habit.Stats, error)
}

func (m *mockHabitService) Create(ctx context.Context, userID, title, description string) (*model.Habit, error) {
	return m.createFn(ctx, userID, title, description)
}
func (m *mockHabitService) Get(ctx context.Context, habitID string) (*model.Habit, error) {
	return m.getFn(ctx, habitID)
}
func (m *mockHabitService) ListByUser(ctx context.Context, userID string) ([]*model.Habit, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *mockHabitService) ListActiveByUser(ctx context.Context, userID string) ([]*model.Habit, error) {
	return m.listActiveByUserFn(ctx, userID)
}
func (m *mockHabitService) Update(ctx context.Context, habitID string, upd model.HabitUpdate) (*model.Habit, error) {
	return m.updateFn(ctx, habitID, upd)
}
func (m *mockHabitService) Delete(ctx context.Context, habitID string) error {
	return m.deleteFn(ctx, habitID)
}
func (m *mockHabitService) Complete(ctx context.Context, habitID string) (*model.Habit, error) {
	return m.completeFn(ctx, habitID)
}
func (m *mockHabitService) Stats(ctx context.Context, userID string) (*habit.Stats, error) {
	return m.statsFn(ctx, userID)
}

// testUser は認証済みリクエストで使用するユーザー。
var testUser = &model.User{ID: "user-1", TelegramID: 111, IsActive: true}

// authedRequest は認証済みユーザー入りのリクエストを生成する。
// chi.URLParamを機能させるためRouteContextも注入する。
func authedRequest(method, path string, body []byte, params map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	ctx := middleware.ContextWithUser(req.Context(), testUser)

	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	return req.WithContext(ctx)
}

// 習慣作成で201とレスポンスボディが返ること
func TestHabitHandler_CreateHabit(t *testing.T) {
	service := &mockHabitService{
		createFn: func(ctx context.Context, userID, title, description string) (*model.Habit, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return &model.Habit{
				ID:       "habit-1",
				UserID:   userID,
				Title:    title,
				IsActive: true,
			}, nil
		},
	}
	h := NewHabitHandler(service, nil)

	body, _ := json.Marshal(createHabitRequest{Title: "Run"})
	w := httptest.NewRecorder()
	h.CreateHabit(w, authedRequest(http.MethodPost, "/api/habits", body, nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp habitResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "habit-1" {
		t.Errorf("id = %q, want %q", resp.ID, "habit-1")
	}
	if resp.Title != "Run" {
		t.Errorf("title = %q, want %q", resp.Title, "Run")
	}
}

// バリデーションエラーで400が返ること
func TestHabitHandler_CreateHabit_ValidationError(t *testing.T) {
	service := &mockHabitService{
		createFn: func(ctx context.Context, userID, title, description string) (*model.Habit, error) {
			return nil, model.NewValidationError("タイトルは2文字以上が必要です")
		},
	}
	h := NewHabitHandler(service, nil)

	body, _ := json.Marshal(createHabitRequest{Title: "x"})
	w := httptest.NewRecorder()
	h.CreateHabit(w, authedRequest(http.MethodPost, "/api/habits", body, nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// 未認証リクエストで401が返ること
func TestHabitHandler_CreateHabit_Unauthenticated(t *testing.T) {
	h := NewHabitHandler(&mockHabitService{}, nil)

	body, _ := json.Marshal(createHabitRequest{Title: "Run"})
	req := httptest.NewRequest(http.MethodPost, "/api/habits", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateHabit(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// 一覧取得が空の場合に[]が返ること（nullではない）
func TestHabitHandler_ListHabits_EmptyReturnsArray(t *testing.T) {
	service := &mockHabitService{
		listByUserFn: func(ctx context.Context, userID string) ([]*model.Habit, error) {
			return nil, nil
		},
	}
	h := NewHabitHandler(service, nil)

	w := httptest.NewRecorder()
	h.ListHabits(w, authedRequest(http.MethodGet, "/api/habits", nil, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

// アクティブ習慣のみが返ること
func TestHabitHandler_ListActiveHabits(t *testing.T) {
	service := &mockHabitService{
		listActiveByUserFn: func(ctx context.Context, userID string) ([]*model.Habit, error) {
			return []*model.Habit{
				{ID: "habit-1", UserID: userID, Title: "Run", IsActive: true},
			}, nil
		},
	}
	h := NewHabitHandler(service, nil)

	w := httptest.NewRecorder()
	h.ListActiveHabits(w, authedRequest(http.MethodGet, "/api/habits/active", nil, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []habitResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
}

// 統計情報が返ること
func TestHabitHandler_GetStats(t *testing.T) {
	service := &mockHabitService{
		statsFn: func(ctx context.Context, userID string) (*habit.Stats, error) {
			return &habit.Stats{
				TotalActiveHabits:    2,
				CompletedToday:       1,
				TotalCompletions:     30,
				CurrentStreakDays:    5,
				BestHabitTitle:       "Meditate",
				BestHabitCompletions: 20,
			}, nil
		},
	}
	h := NewHabitHandler(service, nil)

	w := httptest.NewRecorder()
	h.GetStats(w, authedRequest(http.MethodGet, "/api/habits/stats", nil, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp statsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalActiveHabits != 2 {
		t.Errorf("total_active_habits = %d, want 2", resp.TotalActiveHabits)
	}
	if resp.BestHabitTitle != "Meditate" {
		t.Errorf("best_habit_title = %q, want %q", resp.BestHabitTitle, "Meditate")
	}
}

// 存在しない習慣IDで404が返ること
func TestHabitHandler_GetHabit_NotFound(t *testing.T) {
	service := &mockHabitService{
		getFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return nil, nil
		},
	}
	h := NewHabitHandler(service, nil)

	w := httptest.NewRecorder()
	h.GetHabit(w, authedRequest(http.MethodGet, "/api/habits/missing", nil, map[string]string{"id": "missing"}))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeHabitNotFound {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeHabitNotFound)
	}
}

// 他ユーザーの習慣へのアクセスで403が返ること
func TestHabitHandler_GetHabit_Forbidden(t *testing.T) {
	service := &mockHabitService{
		getFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return &model.Habit{ID: habitID, UserID: "other-user", Title: "Secret"}, nil
		},
	}
	h := NewHabitHandler(service, nil)

	w := httptest.NewRecorder()
	h.GetHabit(w, authedRequest(http.MethodGet, "/api/habits/habit-9", nil, map[string]string{"id": "habit-9"}))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeForbidden)
	}
}

// 部分更新が正しくサービスに渡されること
func TestHabitHandler_UpdateHabit(t *testing.T) {
	service := &mockHabitService{
		getFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return &model.Habit{ID: habitID, UserID: "user-1", Title: "Run"}, nil
		},
		updateFn: func(ctx context.Context, habitID string, upd model.HabitUpdate) (*model.Habit, error) {
			if upd.Title == nil || *upd.Title != "Jog" {
				t.Errorf("upd.Title = %v, want Jog", upd.Title)
			}
			if upd.Description != nil {
				t.Error("upd.Description should be nil")
			}
			return &model.Habit{ID: habitID, UserID: "user-1", Title: "Jog"}, nil
		},
	}
	h := NewHabitHandler(service, nil)

	body := []byte(`{"title":"Jog"}`)
	w := httptest.NewRecorder()
	h.UpdateHabit(w, authedRequest(http.MethodPatch, "/api/habits/habit-1", body, map[string]string{"id": "habit-1"}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// 削除成功で204が返ること
func TestHabitHandler_DeleteHabit(t *testing.T) {
	deleteCalled := false
	service := &mockHabitService{
		getFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return &model.Habit{ID: habitID, UserID: "user-1", Title: "Run"}, nil
		},
		deleteFn: func(ctx context.Context, habitID string) error {
			deleteCalled = true
			return nil
		},
	}
	h := NewHabitHandler(service, nil)

	w := httptest.NewRecorder()
	h.DeleteHabit(w, authedRequest(http.MethodDelete, "/api/habits/habit-1", nil, map[string]string{"id": "habit-1"}))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !deleteCalled {
		t.Error("Delete should have been called")
	}
}

// completionMetricsRecorder はCompletionMetricsのテスト用モック。
type completionMetricsRecorder struct {
	completed int
}

func (m *completionMetricsRecorder) RecordHabitCompleted() {
	m.completed++
}

// 完了記録で200が返り、メトリクスが記録されること
func TestHabitHandler_CompleteHabit(t *testing.T) {
	now := time.Now()
	service := &mockHabitService{
		getFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return &model.Habit{ID: habitID, UserID: "user-1", Title: "Run", CompletionCount: 3}, nil
		},
		completeFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return &model.Habit{
				ID:              habitID,
				UserID:          "user-1",
				Title:           "Run",
				CompletionCount: 4,
				LastCompleted:   &now,
			}, nil
		},
	}
	recorder := &completionMetricsRecorder{}
	h := NewHabitHandler(service, recorder)

	w := httptest.NewRecorder()
	h.CompleteHabit(w, authedRequest(http.MethodPost, "/api/habits/habit-1/complete", nil, map[string]string{"id": "habit-1"}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp habitResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CompletionCount != 4 {
		t.Errorf("completion_count = %d, want 4", resp.CompletionCount)
	}
	if recorder.completed != 1 {
		t.Errorf("metrics completed = %d, want 1", recorder.completed)
	}
}

// 同日重複完了で422が返ること
func TestHabitHandler_CompleteHabit_AlreadyCompleted(t *testing.T) {
	service := &mockHabitService{
		getFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return &model.Habit{ID: habitID, UserID: "user-1", Title: "Run"}, nil
		},
		completeFn: func(ctx context.Context, habitID string) (*model.Habit, error) {
			return nil, model.NewAlreadyCompletedError()
		},
	}
	recorder := &completionMetricsRecorder{}
	h := NewHabitHandler(service, recorder)

	w := httptest.NewRecorder()
	h.CompleteHabit(w, authedRequest(http.MethodPost, "/api/habits/habit-1/complete", nil, map[string]string{"id": "habit-1"}))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if recorder.completed != 0 {
		t.Errorf("metrics completed = %d, want 0", recorder.completed)
	}
}
