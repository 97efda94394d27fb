// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric is the global monitoring instance.
var Metric *Metrics

func init() {
	Metric = &Metrics{
		AnnouncementCnt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockrelay_announcement_cnt",
				Help: "How many compact block announcements have been processed since start, by direction.",
			},
			[]string{"direction"},
		),
		ReconstructionCnt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockrelay_reconstruction_cnt",
				Help: "How many block reconstructions have finished since start, by outcome.",
			},
			[]string{"outcome"},
		),
		MissingTxCnt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockrelay_missing_tx_cnt",
				Help: "How many announced transactions were not found in the local pool.",
			},
		),
		PendingTxNum: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockrelay_pending_tx_cnt",
				Help: "Pending tx number in the transaction pool",
			},
		),
		RetainedTxNum: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockrelay_retained_tx_cnt",
				Help: "Removed pool entries still retained by in-flight reconstructions.",
			},
		),
	}
	registerMetrics(Metric)
}

// Metrics used for prometheus
type Metrics struct {
	AnnouncementCnt   *prometheus.CounterVec
	ReconstructionCnt *prometheus.CounterVec
	MissingTxCnt      prometheus.Counter
	PendingTxNum      prometheus.Gauge
	RetainedTxNum     prometheus.Gauge
}

func registerMetrics(m *Metrics) {
	prometheus.MustRegister(m.AnnouncementCnt, m.ReconstructionCnt,
		m.MissingTxCnt, m.PendingTxNum, m.RetainedTxNum)
}

// ProvideMonitorMetrics returns the global variable Metric.
func ProvideMonitorMetrics() *Metrics {
	return Metric
}
