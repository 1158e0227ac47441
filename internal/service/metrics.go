// metrics.go — Prometheus-метрики протокола раскрытия и фоновых задач.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// linksCreatedTotal — созданные ссылки по источнику.
	linksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passlink_links_created_total",
			Help: "Количество созданных одноразовых ссылок",
		},
		[]string{"source"},
	)

	// revealsTotal — попытки раскрытия по результату
	// (success, consumed, not_found, crypto_error, transient).
	revealsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passlink_reveals_total",
			Help: "Попытки раскрытия секрета по результату",
		},
		[]string{"result"},
	)

	// txConflictsTotal — конфликты сериализации, ушедшие на повтор.
	txConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passlink_tx_conflicts_total",
			Help: "Конфликты сериализации транзакций над ссылками",
		},
		[]string{"operation"},
	)

	// cryptoFailuresTotal — не прошедшие проверку теги.
	cryptoFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passlink_crypto_failures_total",
		Help: "Ошибки расшифровки (возможная подмена или порча данных)",
	})

	// auditFailuresTotal — записи аудита, которые не удалось сохранить.
	auditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passlink_audit_write_failures_total",
		Help: "Ошибки записи журнала аудита",
	})

	// auditQueueOverflowTotal — записи, ушедшие мимо переполненной очереди.
	auditQueueOverflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passlink_audit_queue_overflow_total",
		Help: "Записи аудита, записанные в обход переполненной очереди",
	})

	// emailDeliveriesTotal — отправка писем по результату (sent, failed).
	emailDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passlink_email_deliveries_total",
			Help: "Отправка писем со ссылками по результату",
		},
		[]string{"result"},
	)

	// linksExpiredTotal — ссылки, закрытые по сроку жизни.
	linksExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passlink_links_expired_total",
		Help: "Ссылки, переведённые в expired по сроку жизни",
	})
)
