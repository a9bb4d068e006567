// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordHabitCompleted()
	RecordReminderSent()
	RecordReminderFailed()
	RecordHabitsRetired(count int)
	RecordHabitsReset(count int)
	RecordJobLatency(job string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	habitsCompleted prometheus.Counter
	remindersSent   prometheus.Counter
	remindersFailed prometheus.Counter
	habitsRetired   prometheus.Counter
	habitsReset     prometheus.Counter
	jobLatency      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		habitsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_habits_completed_total",
			Help: "記録された習慣完了の合計数",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_reminders_sent_total",
			Help: "送信に成功したリマインダーの合計数",
		}),
		remindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_reminders_failed_total",
			Help: "送信に失敗したリマインダーの合計数",
		}),
		habitsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_habits_retired_total",
			Help: "目標達成により定着扱いとなった習慣の合計数",
		}),
		habitsReset: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_habits_reset_total",
			Help: "未完了によりカウントがリセットされた習慣の合計数",
		}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "habitman_job_latency_seconds",
			Help:    "バックグラウンドジョブの実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.habitsCompleted,
		c.remindersSent,
		c.remindersFailed,
		c.habitsRetired,
		c.habitsReset,
		c.jobLatency,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHabitCompleted は習慣の完了を記録する。
func (c *Collector) RecordHabitCompleted() {
	c.habitsCompleted.Inc()
}

// RecordReminderSent はリマインダー送信成功を記録する。
func (c *Collector) RecordReminderSent() {
	c.remindersSent.Inc()
}

// RecordReminderFailed はリマインダー送信失敗を記録する。
func (c *Collector) RecordReminderFailed() {
	c.remindersFailed.Inc()
}

// RecordHabitsRetired は定着扱いとなった習慣数を記録する。
func (c *Collector) RecordHabitsRetired(count int) {
	c.habitsRetired.Add(float64(count))
}

// RecordHabitsReset はカウントリセットされた習慣数を記録する。
func (c *Collector) RecordHabitsReset(count int) {
	c.habitsReset.Add(float64(count))
}

// RecordJobLatency はジョブの実行時間を記録する。
func (c *Collector) RecordJobLatency(job string, duration time.Duration) {
	c.jobLatency.WithLabelValues(job).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
