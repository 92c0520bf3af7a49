// Package server assembles the constructed singletons a running instance
// needs into one value threaded through main, replacing the teacher's
// package-level globals (config.Config, a global Hub variable) with a
// single ServerContext built once in main and passed down explicitly.
package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cyberspace/auth"
	"cyberspace/config"
	"cyberspace/ingest"
	"cyberspace/listener"
	"cyberspace/logging"
	"cyberspace/metrics"
	"cyberspace/resource"
	"cyberspace/store"
	"cyberspace/tick"
	"cyberspace/voice"
	"cyberspace/world"
)

const (
	streamIdleTimeout    = 60 * time.Second
	ingestInterval       = 30 * time.Second
	shutdownDrainWindow  = 5 * time.Second
)

// ServerContext owns every long-lived component for one run of the process:
// the world model, durable store, resource registry, stream listener, voice
// relay, tick loop and ingestion adapters.
type ServerContext struct {
	World     *world.World
	Resources *resource.Registry
	Store     *store.Store
	Auth      *auth.Manager
	Listener  *listener.Listener
	Voice     *voice.Relay
	Tick      *tick.Loop
	Metrics   *metrics.Recorder

	ingestRunners []*ingest.Runner
	cancel        context.CancelFunc
	tickDone      chan struct{}
}

// New constructs every component, loading the existing snapshot or
// generating the bootstrap world if none exists, and binds both the stream
// listener and the voice relay sockets. No background goroutines are
// started yet; call Run for that.
func New(cfg *config.Config) (*ServerContext, error) {
	registry := prometheus.NewRegistry()
	rec := metrics.NewRecorder(registry)

	w := world.New(rec)

	resourceDir := cfg.SrcResourceDir
	if resourceDir == "" {
		resourceDir = filepath.Join(cfg.StateDir, "resources")
	}
	resources := resource.NewRegistry(resourceDir)
	st := store.New(cfg.StateDir, cfg.SnapshotCompress)

	snap, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		w.LoadSnapshot(snap.Objects, snap.Parcels, snap.Avatars, snap.Users)
		w.RestoreIdentifierWatermarks(snap.MaxUID, snap.MaxUserID, snap.MaxParcel)
		resources.LoadAll(snap.Resources)
		logging.Info("loaded snapshot", map[string]interface{}{
			"objects": len(snap.Objects), "avatars": len(snap.Avatars),
			"parcels": len(snap.Parcels), "users": len(snap.Users),
		})
	} else {
		parcels, err := store.LoadBootstrapWorld(cfg.StateDir)
		if err != nil {
			logging.Warn("bootstrap world file invalid, generating deterministic defaults", map[string]interface{}{"error": err.Error()})
			parcels = store.GenerateBootstrapParcels()
		}
		for _, p := range parcels {
			w.ApplyParcelCreate(p)
		}
		logging.Info("no snapshot found, starting from bootstrap parcels", map[string]interface{}{"parcels": len(parcels)})
	}

	authMgr := auth.NewManager(w)

	streamAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ln, err := listener.New(streamAddr, w, resources, authMgr, streamIdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("bind stream listener on %s: %w", streamAddr, err)
	}

	voiceAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.VoicePort)
	relay, err := voice.New(voiceAddr)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("bind voice relay on %s: %w", voiceAddr, err)
	}

	tickLoop := tick.New(cfg.TickPeriod, w, resources, st, ln)

	return &ServerContext{
		World:     w,
		Resources: resources,
		Store:     st,
		Auth:      authMgr,
		Listener:  ln,
		Voice:     relay,
		Tick:      tickLoop,
		Metrics:   rec,
		ingestRunners: []*ingest.Runner{
			ingest.NewRunner(ingest.NewCryptoVoxelsAdapter(), ingestInterval, w),
		},
	}, nil
}

// Run starts the listener, voice relay, tick loop and ingestion adapters as
// background goroutines and returns immediately.
func (c *ServerContext) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.tickDone = make(chan struct{})

	logging.Info("stream listener bound", map[string]interface{}{"address": c.Listener.Addr().String()})
	go c.Listener.Serve()

	logging.Info("voice relay bound", map[string]interface{}{"address": c.Voice.Addr().String()})
	go c.Voice.Serve()

	go func() {
		defer close(c.tickDone)
		c.Tick.Run(ctx)
	}()

	for _, r := range c.ingestRunners {
		go r.Run(ctx)
	}
}

// Shutdown stops accepting new work, cancels the tick loop (which performs
// one final drain and checkpoint before exiting), and asks every live
// session to close, force-returning after the drain window regardless.
func (c *ServerContext) Shutdown() {
	c.Listener.Close()
	c.Voice.Close()
	c.cancel()

	select {
	case <-c.tickDone:
	case <-time.After(shutdownDrainWindow):
		logging.Warn("tick loop did not stop within the drain window", nil)
	}

	for _, sess := range c.Listener.Sessions() {
		sess.Shutdown()
	}
}
