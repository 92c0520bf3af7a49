// Package tick runs the single global tick loop: draining dirty entities
// from the world model, building one broadcast batch, fanning it out to
// every session, and periodically time-syncing and checkpointing. Grounded
// on the original implementation's server main loop, adapted from a single
// C++ translation unit into a goroutine with a time.Ticker.
package tick

import (
	"context"
	"time"

	"cyberspace/listener"
	"cyberspace/logging"
	"cyberspace/resource"
	"cyberspace/store"
	"cyberspace/world"
)

const (
	timeSyncEveryTicks   = 40
	checkpointEveryTicks = 50
)

// Loop owns the ticker and the dependencies it touches each tick.
type Loop struct {
	period   time.Duration
	world    *world.World
	resources *resource.Registry
	store    *store.Store
	listener *listener.Listener
	start    time.Time
}

func New(period time.Duration, w *world.World, reg *resource.Registry, st *store.Store, ln *listener.Listener) *Loop {
	return &Loop{period: period, world: w, resources: reg, store: st, listener: ln}
}

// Run drives the tick loop until ctx is cancelled, then performs a final
// drain and checkpoint before returning.
func (l *Loop) Run(ctx context.Context) {
	l.start = time.Now()
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	var tickCount uint64
	for {
		select {
		case <-ctx.Done():
			l.runOnce(tickCount)
			l.checkpoint()
			logging.Info("tick loop stopped", map[string]interface{}{"ticks": tickCount})
			return
		case <-ticker.C:
			tickCount++
			l.runOnce(tickCount)
		}
	}
}

func (l *Loop) runOnce(tickCount uint64) {
	started := time.Now()

	batch := make([]world.Packet, 0, 16)
	for _, av := range l.world.DrainDirtyAvatars() {
		batch = append(batch, avatarPacket(&av))
	}
	for _, ob := range l.world.DrainDirtyObjects() {
		batch = append(batch, objectPacket(&ob))
	}

	if tickCount%timeSyncEveryTicks == 0 {
		batch = append(batch, world.EncodeTimeSync(time.Since(l.start).Seconds()))
	}

	l.broadcast(batch)

	if tickCount%checkpointEveryTicks == 0 {
		l.checkpoint()
	}

	l.world.Metrics.ObserveTick(time.Since(started))
}

func avatarPacket(av *world.Avatar) world.Packet {
	switch {
	case av.Lifecycle == world.JustCreated:
		return world.EncodeAvatarCreated(av)
	case av.Lifecycle == world.Dead:
		return world.EncodeAvatarDestroyed(av.UID)
	case av.OtherDirty:
		return world.EncodeAvatarFullUpdate(av)
	default:
		return world.EncodeAvatarTransformUpdate(av)
	}
}

func objectPacket(ob *world.Object) world.Packet {
	switch {
	case ob.Lifecycle == world.JustCreated:
		return world.EncodeObjectCreated(ob)
	case ob.Lifecycle == world.Dead:
		return world.EncodeObjectDestroyed(ob.UID)
	case ob.FromRemoteOtherDirty:
		return world.EncodeObjectFullUpdate(ob)
	default:
		return world.EncodeObjectTransformUpdate(ob)
	}
}

// broadcast pushes every packet in batch onto every live session's outbound
// queue. The world mutex is already released by the time this runs: each
// push only takes that session's own outbound-queue lock. A session whose
// queue reports Overloaded is shut down.
func (l *Loop) broadcast(batch []world.Packet) {
	if len(batch) == 0 {
		return
	}
	sessions := l.listener.Sessions()
	for _, sess := range sessions {
		for _, pkt := range batch {
			if err := sess.Outbound.Push(pkt); err != nil {
				logging.Warn("closing overloaded session", map[string]interface{}{"error": err.Error()})
				sess.Shutdown()
				break
			}
		}
	}
	l.world.Metrics.AddBroadcastPackets(len(batch) * len(sessions))
}

func (l *Loop) checkpoint() {
	if !l.world.ChangedSinceCheckpoint() {
		return
	}
	started := time.Now()
	if err := l.store.Save(l.world, l.resources); err != nil {
		logging.Error("checkpoint failed", map[string]interface{}{"error": err.Error()})
		return
	}
	l.world.Metrics.ObserveCheckpoint(time.Since(started))
	l.world.ClearChangedSinceCheckpoint()
}
