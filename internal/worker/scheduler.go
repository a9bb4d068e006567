// Package worker はバックグラウンドジョブのスケジューリング基盤を提供する。
// cron式に基づく日次ジョブ（引き継ぎ処理、リマインダー配信）の起動と
// 安全な停止を管理する。
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner は定期実行されるジョブのインターフェース。
type Runner interface {
	// Run はジョブを1回実行する。
	Run(ctx context.Context) error
}

// Scheduler はcron式に基づいてジョブを定期実行する。
// すべてのスケジュールはUTCで評価される。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// AddJob はcron式でジョブを登録する。
// ジョブのパニックは捕捉してログに記録し、スケジューラ全体を巻き込まない。
func (s *Scheduler) AddJob(spec string, name string, job Runner) error {
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("ジョブ実行中にパニックが発生しました",
					slog.String("job", name),
					slog.Any("panic", r),
				)
			}
		}()

		start := time.Now()
		s.logger.Info("ジョブを開始します", slog.String("job", name))

		if err := job.Run(context.Background()); err != nil {
			s.logger.Error("ジョブの実行に失敗しました",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
			return
		}

		s.logger.Info("ジョブが完了しました",
			slog.String("job", name),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	})
	if err != nil {
		return err
	}

	s.logger.Info("ジョブを登録しました",
		slog.String("job", name),
		slog.String("spec", spec),
	)
	return nil
}

// Start はスケジューラを起動する。登録済みジョブがcron式に従って実行される。
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("ジョブスケジューラを開始しました")
}

// Stop はスケジューラを停止し、実行中のジョブの完了を待つ。
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("ジョブスケジューラを停止しました")
}
