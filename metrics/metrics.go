// Package metrics holds in-process instrumentation only. Nothing in this
// package is ever exposed over a network interface; the world model and the
// tick loop record values, and no code in this module reads them back
// (component K — no admin surface).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is held by the world model (World.Metrics), through which the
// world and the tick loop record counters and gauges without either
// depending on a concrete exporter.
type Recorder struct {
	tickDuration   prometheus.Histogram
	dirtyObjects   prometheus.Gauge
	dirtyAvatars   prometheus.Gauge
	broadcastFanout prometheus.Counter
	checkpointSecs prometheus.Histogram
	objectsCreated prometheus.Counter
	objectsDestroyed prometheus.Counter
}

// NewRecorder registers a fresh set of collectors against reg. Passing a
// dedicated prometheus.Registry (rather than the global default) keeps
// repeated construction in tests from panicking on duplicate registration.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "world_tick_duration_seconds",
			Help:    "Duration of a single tick-loop iteration.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		dirtyObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "world_dirty_objects",
			Help: "Number of objects in the dirty-from-remote set at last drain.",
		}),
		dirtyAvatars: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "world_dirty_avatars",
			Help: "Number of avatars in the dirty-from-remote set at last drain.",
		}),
		broadcastFanout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "world_broadcast_packets_total",
			Help: "Total packets appended to any session outbound queue.",
		}),
		checkpointSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "world_checkpoint_duration_seconds",
			Help:    "Duration of a snapshot checkpoint write.",
			Buckets: prometheus.DefBuckets,
		}),
		objectsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "world_objects_created_total",
			Help: "Total objects created.",
		}),
		objectsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "world_objects_destroyed_total",
			Help: "Total objects destroyed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.tickDuration, r.dirtyObjects, r.dirtyAvatars,
			r.broadcastFanout, r.checkpointSecs, r.objectsCreated, r.objectsDestroyed)
	}
	return r
}

func (r *Recorder) ObserveTick(d time.Duration) {
	if r == nil {
		return
	}
	r.tickDuration.Observe(d.Seconds())
}

func (r *Recorder) SetDirtyObjects(n int) {
	if r == nil {
		return
	}
	r.dirtyObjects.Set(float64(n))
}

func (r *Recorder) SetDirtyAvatars(n int) {
	if r == nil {
		return
	}
	r.dirtyAvatars.Set(float64(n))
}

func (r *Recorder) AddBroadcastPackets(n int) {
	if r == nil {
		return
	}
	r.broadcastFanout.Add(float64(n))
}

func (r *Recorder) ObserveCheckpoint(d time.Duration) {
	if r == nil {
		return
	}
	r.checkpointSecs.Observe(d.Seconds())
}

func (r *Recorder) IncObjectCreated() {
	if r == nil {
		return
	}
	r.objectsCreated.Inc()
}

func (r *Recorder) IncObjectDestroyed() {
	if r == nil {
		return
	}
	r.objectsDestroyed.Inc()
}
