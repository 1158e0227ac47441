// expiry.go — фоновое истечение срока жизни ссылок.
//
// ExpiryService раз в PL_EXPIRY_INTERVAL выбирает открытые ссылки старше
// PL_LINK_TTL и переводит каждую в expired отдельной транзакцией
// (DisclosureService.Expire). При PL_LINK_TTL=0 сервис не запускается.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/passlink/internal/repository"
)

// expiryBatchSize — ссылок за один проход выборки.
const expiryBatchSize = 500

var expirySweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "passlink_expiry_sweep_duration_seconds",
	Help:    "Длительность прохода истечения срока ссылок",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
})

// linkExpirer — переход одной ссылки в expired.
type linkExpirer interface {
	Expire(ctx context.Context, id string) (bool, error)
}

// ExpiryService — фоновый сервис истечения срока.
type ExpiryService struct {
	links    repository.LinkRepository
	expirer  linkExpirer
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpiryService создаёт сервис истечения срока.
func NewExpiryService(
	links repository.LinkRepository,
	expirer linkExpirer,
	ttl, interval time.Duration,
	logger *slog.Logger,
) *ExpiryService {
	return &ExpiryService{
		links:    links,
		expirer:  expirer,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled — задан ли срок жизни ссылок.
func (s *ExpiryService) Enabled() bool {
	return s.ttl > 0
}

// Start запускает фоновую горутину. При выключенном TTL ничего не делает.
func (s *ExpiryService) Start(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Info("Истечение срока ссылок отключено (PL_LINK_TTL=0)")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Истечение срока ссылок запущено",
			slog.String("ttl", s.ttl.String()),
			slog.String("interval", s.interval.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Истечение срока ссылок остановлено")
				return
			case <-ticker.C:
				expired, err := s.SweepNow(ctx)
				if err != nil {
					s.logger.Error("Ошибка прохода истечения срока",
						slog.String("error", err.Error()),
					)
					continue
				}
				if expired > 0 {
					s.logger.Info("Проход истечения срока завершён",
						slog.Int("expired", expired),
					)
				}
			}
		}
	}()
}

// Stop останавливает горутину и ждёт её завершения.
func (s *ExpiryService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// SweepNow выполняет один проход и возвращает число закрытых ссылок.
// Ошибка отдельной ссылки не прерывает проход.
func (s *ExpiryService) SweepNow(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	start := time.Now()
	defer func() { expirySweepDuration.Observe(time.Since(start).Seconds()) }()

	cutoff := s.now().Add(-s.ttl)
	expired := 0

	for {
		ids, err := s.links.ListOpenCreatedBefore(ctx, cutoff, expiryBatchSize)
		if err != nil {
			return expired, err
		}

		progressed := 0
		for _, id := range ids {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			ok, err := s.expirer.Expire(ctx, id)
			if err != nil {
				s.logger.Warn("Не удалось закрыть ссылку по сроку",
					slog.String("link_id", id),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ok {
				expired++
				progressed++
			}
		}

		// Неполная партия или ни одна ссылка не закрыта — дальше выбирать нечего
		if len(ids) < expiryBatchSize || progressed == 0 {
			return expired, nil
		}
	}
}
