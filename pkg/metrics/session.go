// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label constants.
const (
	LblType   = "type"
	LblResult = "result"

	LblOK    = "ok"
	LblError = "error"

	TypeExecute         = "execute"
	TypePrepareExecute  = "prepare_execute"
	TypeExecutePrepared = "execute_prepared"
	TypeDeallocate      = "deallocate"
)

var (
	StmtTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelSession,
			Name:      "stmt_total",
			Help:      "Counter of executed statements.",
		}, []string{LblType, LblResult})

	StmtDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelSession,
			Name:      "stmt_duration_seconds",
			Help:      "Bucketed histogram of statement execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 26), // 100us ~ 1h
		}, []string{LblType})

	PreparedRetryCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelSession,
			Name:      "prepared_retry_total",
			Help:      "Counter of statements re-run unprepared after a failed prepare.",
		})

	RowsFetchedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelResult,
			Name:      "rows_fetched_total",
			Help:      "Counter of rows delivered to row processors.",
		})

	ResultSetCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelResult,
			Name:      "result_sets_total",
			Help:      "Counter of result sets produced by statements.",
		})

	DataInCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelConn,
			Name:      "in_bytes",
			Help:      "Counter of bytes read from servers.",
		})

	DataOutCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ModuleMysqlx,
			Subsystem: LabelConn,
			Name:      "out_bytes",
			Help:      "Counter of bytes written to servers.",
		})
)
