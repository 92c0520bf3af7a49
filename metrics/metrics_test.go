package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewRecorderRegistersAgainstFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	assert.NotNil(t, r)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 7, "expected exactly the seven collectors NewRecorder registers")
}

func TestNewRecorderWithNilRegistererDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		r := NewRecorder(nil)
		r.ObserveTick(time.Millisecond)
	})
}

func TestNilRecorderMethodsAreNoops(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveTick(time.Second)
		r.SetDirtyObjects(5)
		r.SetDirtyAvatars(3)
		r.AddBroadcastPackets(2)
		r.ObserveCheckpoint(time.Millisecond)
		r.IncObjectCreated()
		r.IncObjectDestroyed()
	})
}

func TestRecorderMethodsUpdateUnderlyingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.SetDirtyObjects(7)
	r.IncObjectCreated()
	r.IncObjectCreated()

	families, err := reg.Gather()
	assert.NoError(t, err)

	var sawDirty, sawCreated bool
	for _, f := range families {
		switch f.GetName() {
		case "world_dirty_objects":
			sawDirty = true
			assert.Equal(t, float64(7), f.Metric[0].GetGauge().GetValue())
		case "world_objects_created_total":
			sawCreated = true
			assert.Equal(t, float64(2), f.Metric[0].GetCounter().GetValue())
		}
	}
	assert.True(t, sawDirty)
	assert.True(t, sawCreated)
}
