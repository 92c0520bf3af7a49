// Package listener accepts stream connections and hands each one to a new
// session worker, the way the teacher's main.go sequences ListenAndServe
// startup, adapted from an HTTP server to a raw TCP accept loop.
package listener

import (
	"errors"
	"net"
	"sync"
	"time"

	"cyberspace/auth"
	"cyberspace/logging"
	"cyberspace/resource"
	"cyberspace/session"
	"cyberspace/world"
)

// Listener owns the stream socket and the set of sessions it has spawned.
type Listener struct {
	ln          net.Listener
	world       *world.World
	resources   *resource.Registry
	authMgr     *auth.Manager
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[*session.Session]struct{}
}

func New(addr string, w *world.World, reg *resource.Registry, authMgr *auth.Manager, idleTimeout time.Duration) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		ln:          ln,
		world:       w,
		resources:   reg,
		authMgr:     authMgr,
		idleTimeout: idleTimeout,
		sessions:    make(map[*session.Session]struct{}),
	}, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve runs the accept loop until the listener is closed. net.Error's
// Temporary method is deprecated and no longer reliably tells transient
// accept failures from fatal ones, so the loop instead treats
// net.ErrClosed (via Close) as the one permanent condition and retries
// everything else, matching §4.F's "a transient accept failure does not
// terminate the listener."
func (l *Listener) Serve() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logging.Info("listener accept loop ending", map[string]interface{}{"error": err.Error()})
				return
			}
			logging.Warn("transient accept error", map[string]interface{}{"error": err.Error()})
			continue
		}
		sess := session.New(conn, l.world, l.resources, l.authMgr, l.idleTimeout)
		l.track(sess)
		go func() {
			defer l.untrack(sess)
			sess.Run()
		}()
	}
}

func (l *Listener) track(s *session.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[s] = struct{}{}
}

func (l *Listener) untrack(s *session.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, s)
}

// Sessions returns a snapshot of the currently live sessions, used by the
// tick loop to push each tick's broadcast batch.
func (l *Listener) Sessions() []*session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*session.Session, 0, len(l.sessions))
	for s := range l.sessions {
		out = append(out, s)
	}
	return out
}

// Close stops accepting new connections. In-flight sessions are not forced
// closed here; ServerContext.Shutdown closes them after the tick loop stops.
func (l *Listener) Close() error {
	return l.ln.Close()
}
