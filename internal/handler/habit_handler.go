package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/habitman/internal/habit"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/model"
)

// HabitServiceInterface は習慣ハンドラーが必要とするサービスインターフェース。
type HabitServiceInterface interface {
	Create(ctx context.Context, userID, title, description string) (*model.Habit, error)
	Get(ctx context.Context, habitID string) (*model.Habit, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Habit, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*model.Habit, error)
	Update(ctx context.Context, habitID string, upd model.HabitUpdate) (*model.Habit, error)
	Delete(ctx context.Context, habitID string) error
	Complete(ctx context.Context, habitID string) (*model.Habit, error)
	Stats(ctx context.Context, userID string) (*habit.Stats, error)
}

// CompletionMetrics は完了記録のメトリクス記録インターフェース。
type CompletionMetrics interface {
	RecordHabitCompleted()
}

// HabitHandler は習慣管理のHTTPハンドラー。
type HabitHandler struct {
	service HabitServiceInterface
	metrics CompletionMetrics
}

// NewHabitHandler はHabitHandlerを生成する。metricsはnil可。
func NewHabitHandler(service HabitServiceInterface, metrics CompletionMetrics) *HabitHandler {
	return &HabitHandler{
		service: service,
		metrics: metrics,
	}
}

// createHabitRequest は習慣作成リクエストのボディ。
type createHabitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateHabitRequest は習慣更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateHabitRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// habitResponse は習慣情報のAPIレスポンス。
type habitResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	IsActive        bool       `json:"is_active"`
	CompletionCount int        `json:"completion_count"`
	LastCompleted   *time.Time `json:"last_completed"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// statsResponse は統計情報のAPIレスポンス。
type statsResponse struct {
	TotalActiveHabits    int    `json:"total_active_habits"`
	CompletedToday       int    `json:"completed_today"`
	CompletedThisWeek    int    `json:"completed_this_week"`
	TotalCompletions     int    `json:"total_completions"`
	CurrentStreakDays    int    `json:"current_streak_days"`
	BestHabitTitle       string `json:"best_habit_title,omitempty"`
	BestHabitCompletions int    `json:"best_habit_completions"`
}

// CreateHabit は習慣を作成する。
// POST /api/habits
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	var req createHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), user.ID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHabitResponse(created))
}

// ListHabits はユーザーの全習慣を取得する。
// GET /api/habits
func (h *HabitHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	habits, err := h.service.ListByUser(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHabitListResponse(habits))
}

// ListActiveHabits はユーザーのアクティブな習慣を取得する。
// GET /api/habits/active
func (h *HabitHandler) ListActiveHabits(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	habits, err := h.service.ListActiveByUser(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHabitListResponse(habits))
}

// GetStats はユーザーの習慣統計を取得する。
// GET /api/habits/stats
func (h *HabitHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	stats, err := h.service.Stats(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalActiveHabits:    stats.TotalActiveHabits,
		CompletedToday:       stats.CompletedToday,
		CompletedThisWeek:    stats.CompletedThisWeek,
		TotalCompletions:     stats.TotalCompletions,
		CurrentStreakDays:    stats.CurrentStreakDays,
		BestHabitTitle:       stats.BestHabitTitle,
		BestHabitCompletions: stats.BestHabitCompletions,
	})
}

// GetHabit は習慣詳細を取得する。
// GET /api/habits/:id
func (h *HabitHandler) GetHabit(w http.ResponseWriter, r *http.Request) {
	target, ok := h.ownedHabit(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toHabitResponse(target))
}

// UpdateHabit は習慣を部分更新する。
// PATCH /api/habits/:id
func (h *HabitHandler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	target, ok := h.ownedHabit(w, r)
	if !ok {
		return
	}

	var req updateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), target.ID, model.HabitUpdate{
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHabitResponse(updated))
}

// DeleteHabit は習慣を削除する。
// DELETE /api/habits/:id
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	target, ok := h.ownedHabit(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), target.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteHabit は習慣の当日完了を記録する。
// POST /api/habits/:id/complete
func (h *HabitHandler) CompleteHabit(w http.ResponseWriter, r *http.Request) {
	target, ok := h.ownedHabit(w, r)
	if !ok {
		return
	}

	completed, err := h.service.Complete(r.Context(), target.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordHabitCompleted()
	}

	writeJSON(w, http.StatusOK, toHabitResponse(completed))
}

// ownedHabit はパスパラメータの習慣を取得し、リクエストユーザーの所有権を検証する。
// 検証に失敗した場合はエラーレスポンスを書き込み、okにfalseを返す。
func (h *HabitHandler) ownedHabit(w http.ResponseWriter, r *http.Request) (*model.Habit, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return nil, false
	}

	habitID := chi.URLParam(r, "id")

	target, err := h.service.Get(r.Context(), habitID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if target == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewHabitNotFoundError(habitID))
		return nil, false
	}
	if target.UserID != user.ID {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return nil, false
	}

	return target, true
}

// --- ヘルパー関数 ---

// toHabitResponse はmodel.HabitからAPIレスポンスに変換する。
func toHabitResponse(h *model.Habit) habitResponse {
	return habitResponse{
		ID:              h.ID,
		Title:           h.Title,
		Description:     h.Description,
		IsActive:        h.IsActive,
		CompletionCount: h.CompletionCount,
		LastCompleted:   h.LastCompleted,
		CreatedAt:       h.CreatedAt,
		UpdatedAt:       h.UpdatedAt,
	}
}

// toHabitListResponse は習慣リストをAPIレスポンスに変換する。
// 空リストはnullではなく[]として返す。
func toHabitListResponse(habits []*model.Habit) []habitResponse {
	resp := make([]habitResponse, 0, len(habits))
	for _, h := range habits {
		resp = append(resp, toHabitResponse(h))
	}
	return resp
}
