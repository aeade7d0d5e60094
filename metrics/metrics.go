// Package metrics exposes coordination events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/virgil28labs/timesync/models"
)

// Collector turns coordination events into metrics. It has the shape of a
// coordinator observer.
type Collector struct {
	isLeader         prometheus.Gauge
	peers            prometheus.Gauge
	lastDrift        prometheus.Gauge
	driftCorrections prometheus.Counter
	leaderChanges    prometheus.Counter
	peersJoined      prometheus.Counter
	peersLost        prometheus.Counter
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	sendFailures     prometheus.Counter
	syncRejected     prometheus.Counter
	syncLatency      prometheus.Histogram
	updates          prometheus.Counter
	lastUpdate       prometheus.Gauge
}

// New registers every collector on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		isLeader: f.NewGauge(prometheus.GaugeOpts{
			Name: IsLeaderN,
			Help: IsLeaderH,
		}),
		peers: f.NewGauge(prometheus.GaugeOpts{
			Name: PeersN,
			Help: PeersH,
		}),
		lastDrift: f.NewGauge(prometheus.GaugeOpts{
			Name: LastDriftN,
			Help: LastDriftH,
		}),
		driftCorrections: f.NewCounter(prometheus.CounterOpts{
			Name: DriftCorrectionsN,
			Help: DriftCorrectionsH,
		}),
		leaderChanges: f.NewCounter(prometheus.CounterOpts{
			Name: LeaderChangesN,
			Help: LeaderChangesH,
		}),
		peersJoined: f.NewCounter(prometheus.CounterOpts{
			Name: PeersJoinedN,
			Help: PeersJoinedH,
		}),
		peersLost: f.NewCounter(prometheus.CounterOpts{
			Name: PeersLostN,
			Help: PeersLostH,
		}),
		messagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: MessagesSentN,
			Help: MessagesSentH,
		}, []string{"kind"}),
		messagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: MessagesReceivedN,
			Help: MessagesReceivedH,
		}, []string{"kind"}),
		sendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: SendFailuresN,
			Help: SendFailuresH,
		}),
		syncRejected: f.NewCounter(prometheus.CounterOpts{
			Name: SyncRejectedN,
			Help: SyncRejectedH,
		}),
		syncLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    SyncLatencySecondsN,
			Help:    SyncLatencySecondsH,
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		updates: f.NewCounter(prometheus.CounterOpts{
			Name: UpdatesDeliveredN,
			Help: UpdatesDeliveredH,
		}),
		lastUpdate: f.NewGauge(prometheus.GaugeOpts{
			Name: LastUpdateSecondsN,
			Help: LastUpdateSecondsH,
		}),
	}
}

// Deliver has the shape of a clock subscriber. It records every time
// update the peer delivers.
func (c *Collector) Deliver(u models.TimeUpdate) {
	c.updates.Inc()
	if !u.Instant.IsZero() {
		c.lastUpdate.Set(float64(u.Instant.Unix()) + float64(u.Instant.Nanosecond())/float64(time.Second))
	}
}

func (c *Collector) Observe(ev models.SyncEvent) {
	if ev.IsLeader {
		c.isLeader.Set(1)
	} else {
		c.isLeader.Set(0)
	}
	if ev.Peers > 0 {
		c.peers.Set(float64(ev.Peers))
	}

	switch ev.Kind {
	case models.EventLeaderChanged:
		c.leaderChanges.Inc()
	case models.EventPeerJoined:
		c.peersJoined.Inc()
	case models.EventPeerLost:
		c.peersLost.Inc()
	case models.EventDriftCorrected:
		c.driftCorrections.Inc()
		c.lastDrift.Set(ev.Drift.Seconds())
	case models.EventMessageSent:
		c.messagesSent.WithLabelValues(string(ev.MessageKind)).Inc()
	case models.EventMessageRecv:
		c.messagesReceived.WithLabelValues(string(ev.MessageKind)).Inc()
	case models.EventSendFailed:
		c.sendFailures.Inc()
	case models.EventSyncApplied:
		latency := ev.Latency
		if latency < 0 {
			latency = -latency
		}
		c.syncLatency.Observe(latency.Seconds())
	case models.EventSyncRejected:
		c.syncRejected.Inc()
	}
}
