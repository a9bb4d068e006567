package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type statusRecorderMetrics struct {
	codes []int
}

func (m *statusRecorderMetrics) RecordHTTPStatus(statusCode int) {
	m.codes = append(m.codes, statusCode)
}

// レスポンスのステータスコードが記録されること
func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	metrics := &statusRecorderMetrics{}
	handler := NewMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/habits/missing", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(metrics.codes) != 1 || metrics.codes[0] != http.StatusNotFound {
		t.Errorf("記録されたステータス = %v, want [404]", metrics.codes)
	}
}

// WriteHeader未呼び出しの場合は200として記録されること
func TestMetricsMiddleware_DefaultsTo200(t *testing.T) {
	metrics := &statusRecorderMetrics{}
	handler := NewMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(metrics.codes) != 1 || metrics.codes[0] != http.StatusOK {
		t.Errorf("記録されたステータス = %v, want [200]", metrics.codes)
	}
}
