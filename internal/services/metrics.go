package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// метрики журнала

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pay2win_ledger_operations_total",
			Help: "Кол-во проведенных операций журнала",
		},
		[]string{"operation"},
	)

	pointsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pay2win_ledger_points_total",
			Help: "Кол-во баллов, изменивших баланс",
		},
		[]string{"type"},
	)
)
