package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// コンパイル時の実装チェック
var _ MetricsCollector = (*Collector)(nil)

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if c == nil {
		t.Fatal("NewCollector は nil を返してはならない")
	}
}

// 各Record系メソッドがパニックしないこと
func TestCollector_RecordMethods(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)
	c.RecordHabitCompleted()
	c.RecordReminderSent()
	c.RecordReminderFailed()
	c.RecordHabitsRetired(3)
	c.RecordHabitsReset(2)
	c.RecordJobLatency("transfer", 150*time.Millisecond)
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordReminderSent()
	c.RecordHabitCompleted()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if !strings.Contains(bodyStr, "habitman_reminders_sent_total") {
		t.Error("response should contain habitman_reminders_sent_total metric")
	}
	if !strings.Contains(bodyStr, "habitman_habits_completed_total") {
		t.Error("response should contain habitman_habits_completed_total metric")
	}
}
