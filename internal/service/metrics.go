package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики координатора синхронизации. Экспортируются на /metrics.
var (
	syncCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradejournal_sync_cycles_total",
		Help: "Количество циклов синхронизации по провайдеру и результату",
	}, []string{"provider", "result"})

	syncTradesMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradejournal_sync_trades_merged_total",
		Help: "Количество новых сделок, добавленных синхронизацией",
	}, []string{"provider"})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradejournal_sync_duration_seconds",
		Help:    "Длительность полного цикла синхронизации",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	syncWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradejournal_sync_watermark_ms",
		Help: "Текущий watermark пары (uid, coin) в epoch миллисекундах",
	}, []string{"uid", "coin"})
)
