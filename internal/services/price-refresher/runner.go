package pricerefresher

import (
	"context"
	"time"

	config "github.com/NordCoder/Aurum/internal/config/price-refresher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	triggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refresher_triggers_total", Help: "Refresh triggers sent to the api-gateway",
	}, []string{"result"})
	ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refresher_ticks_total", Help: "Refresher loop iterations",
	})
	tickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "refresher_tick_duration_seconds", Help: "Refresher tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.Refresher
}

func New(log *zap.Logger, uc *Usecase, cfg *config.Refresher) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	ok, failed := r.UC.Tick(ctx, r.Cfg.Instruments)
	ticks.Inc()
	if failed > 0 {
		r.Log.Warn("refresh tick incomplete", zap.Int("ok", ok), zap.Int("failed", failed))
	} else {
		r.Log.Debug("refresh tick", zap.Int("ok", ok))
	}
	tickDur.Observe(time.Since(start).Seconds())
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
