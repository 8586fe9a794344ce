// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

const (
	ModuleMysqlx = "mysqlx"
)

// metrics subsystems.
const (
	LabelSession = "session"
	LabelResult  = "result"
	LabelConn    = "conn"
)

// RegisterMetrics registers all collectors with the default registerer.
func RegisterMetrics() {
	prometheus.DefaultRegisterer.Unregister(prometheus.NewGoCollector())
	prometheus.MustRegister(collectors.NewGoCollector(collectors.WithGoCollectorRuntimeMetrics()))

	prometheus.MustRegister(StmtTotalCounter)
	prometheus.MustRegister(StmtDurationHistogram)
	prometheus.MustRegister(PreparedRetryCounter)
	prometheus.MustRegister(RowsFetchedCounter)
	prometheus.MustRegister(ResultSetCounter)
	prometheus.MustRegister(DataInCounter)
	prometheus.MustRegister(DataOutCounter)
}

// Collect gathers the samples of one collector. It is only used for testing.
func Collect(coll prometheus.Collector) ([]*dto.Metric, error) {
	ch := make(chan prometheus.Metric, 128)
	go func() {
		coll.Collect(ch)
		close(ch)
	}()
	results := make([]*dto.Metric, 0, 4)
	for m := range ch {
		metric := &dto.Metric{}
		if err := m.Write(metric); err != nil {
			return nil, err
		}
		results = append(results, metric)
	}
	return results, nil
}

// ReadCounter reads the value from the counter. It is only used for testing.
func ReadCounter(counter prometheus.Counter) (int, error) {
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		return 0, err
	}
	return int(metric.Counter.GetValue()), nil
}

// ReadGauge reads the value from the gauge. It is only used for testing.
func ReadGauge(gauge prometheus.Gauge) (int, error) {
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		return 0, err
	}
	return int(metric.Gauge.GetValue()), nil
}
