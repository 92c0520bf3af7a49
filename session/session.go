package session

import (
	"errors"
	"net"
	"time"

	"cyberspace/apperr"
	"cyberspace/auth"
	"cyberspace/logging"
	"cyberspace/resource"
	"cyberspace/wire"
	"cyberspace/world"
)

const (
	defaultOutboundLen      = 256
	defaultOutboundCritical = 64
)

// state is the session worker's lifecycle, per the handshake state machine.
type state int

const (
	stateAwaitingHello state = iota
	stateAwaitingAuth
	stateReady
	stateClosing
)

// Session is one client connection's worker: it owns the socket, drives the
// handshake, applies inbound mutations to the world model under the
// permission rule, and writes whatever the tick loop pushes onto its
// outbound queue.
type Session struct {
	conn        net.Conn
	r           *wire.Reader
	world       *world.World
	resources   *resource.Registry
	authMgr     *auth.Manager
	idleTimeout time.Duration

	Outbound *OutboundQueue

	state     state
	userID    world.UserID
	avatarUID world.UID
}

func New(conn net.Conn, w *world.World, reg *resource.Registry, authMgr *auth.Manager, idleTimeout time.Duration) *Session {
	return &Session{
		conn:        conn,
		r:           wire.NewStreamReader(conn),
		world:       w,
		resources:   reg,
		authMgr:     authMgr,
		idleTimeout: idleTimeout,
		Outbound:    NewOutboundQueue(defaultOutboundLen, defaultOutboundCritical),
		state:       stateAwaitingHello,
	}
}

// Run drives the session to completion: handshake, then concurrent
// reader/writer pumps until either fails, then a clean close that marks the
// avatar Dead for the tick loop to broadcast and reap.
func (s *Session) Run() {
	defer s.close()

	if err := s.doHandshake(); err != nil {
		logging.Warn("session handshake failed", map[string]interface{}{"error": err.Error(), "remote": s.conn.RemoteAddr().String()})
		return
	}

	s.state = stateReady
	errCh := make(chan error, 2)
	go s.readPump(errCh)
	go s.writePump(errCh)
	err := <-errCh
	s.state = stateClosing
	if err != nil && !errors.Is(err, errSessionClosed) {
		logging.Info("session closing", map[string]interface{}{"avatar_uid": s.avatarUID, "error": err.Error()})
	}
}

var errSessionClosed = errors.New("session: closed")

func (s *Session) deadline() time.Time {
	if s.idleTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.idleTimeout)
}

func (s *Session) nextKind() (uint32, error) {
	s.conn.SetReadDeadline(s.deadline())
	return s.r.U32()
}

// doHandshake implements AwaitingHello then AwaitingAuth.
func (s *Session) doHandshake() error {
	kind, err := s.nextKind()
	if err != nil {
		return err
	}
	if kind != wire.KindHello {
		return apperr.New(apperr.ProtocolVersionMismatch, "expected Hello as first packet")
	}
	h, err := world.DecodeHello(s.r)
	if err != nil {
		return apperr.New(apperr.Malformed, "malformed hello")
	}
	if h.Magic != world.ProtocolMagic || h.Version != world.ProtocolVersion {
		return apperr.New(apperr.ProtocolVersionMismatch, "protocol magic/version mismatch")
	}

	s.state = stateAwaitingAuth
	kind, err = s.nextKind()
	if err != nil {
		return err
	}
	if kind != wire.KindAuthRequest {
		return apperr.New(apperr.Malformed, "expected AuthRequest")
	}
	req, err := world.DecodeAuthRequest(s.r)
	if err != nil {
		return apperr.New(apperr.Malformed, "malformed auth request")
	}

	userID, err := s.authMgr.Authenticate(req.Username, req.Password)
	if err != nil {
		resp := world.EncodeAuthResponse(false, world.InvalidUID, "authentication failed")
		s.conn.Write(resp.Bytes)
		return err
	}
	s.userID = userID

	av := world.Avatar{
		OwnerUserID: userID,
		Name:        req.Username,
		Lifecycle:   world.JustCreated,
	}
	s.avatarUID = s.world.ApplyAvatarCreate(av)

	resp := world.EncodeAuthResponse(true, s.avatarUID, "")
	_, err = s.conn.Write(resp.Bytes)
	return err
}

// readPump applies inbound client messages to the world model in arrival
// order, grounded on the teacher's readPump/handleClientMessage split.
func (s *Session) readPump(errCh chan<- error) {
	for {
		kind, err := s.nextKind()
		if err != nil {
			errCh <- err
			return
		}
		if err := s.handleInbound(kind); err != nil {
			if k, ok := apperr.As(err); ok {
				reason := world.EncodeErrorMessage(string(k), err.Error())
				s.Outbound.Push(reason)
				if k == apperr.Overloaded {
					errCh <- err
					return
				}
				continue
			}
			logging.Warn("session inbound handling error", map[string]interface{}{"error": err.Error()})
			errCh <- err
			return
		}
	}
}

func (s *Session) handleInbound(kind uint32) error {
	switch kind {
	case wire.KindObjectCreateRequest:
		req, err := world.DecodeObjectCreateRequest(s.r)
		if err != nil {
			return apperr.New(apperr.Malformed, "malformed object create request")
		}
		ob := world.Object{
			Type:        req.Type,
			OwnerUserID: s.userID,
			Transform:   req.Transform,
			ModelURL:    req.ModelURL,
			Materials:   req.Materials,
			VoxelGroup:  req.VoxelGroup,
			Content:     req.Content,
			Lifecycle:   world.JustCreated,
		}
		_, err = s.world.ApplyObjectCreate(ob, world.InvalidUID)
		return err

	case wire.KindObjectUpdateRequest:
		req, err := world.DecodeObjectUpdateRequest(s.r)
		if err != nil {
			return apperr.New(apperr.Malformed, "malformed object update request")
		}
		ob, ok := s.world.GetObject(req.UID)
		if !ok {
			return apperr.New(apperr.NotFound, "object not found")
		}
		if !s.world.CheckObjectMutation(s.userID, &ob) {
			return apperr.New(apperr.PermissionDenied, "not permitted to mutate this object")
		}
		return s.world.ApplyObjectUpdate(req.UID, req.Patch)

	case wire.KindObjectDestroyRequest:
		req, err := world.DecodeObjectDestroyRequest(s.r)
		if err != nil {
			return apperr.New(apperr.Malformed, "malformed object destroy request")
		}
		ob, ok := s.world.GetObject(req.UID)
		if !ok {
			return apperr.New(apperr.NotFound, "object not found")
		}
		if !s.world.CheckObjectMutation(s.userID, &ob) {
			return apperr.New(apperr.PermissionDenied, "not permitted to destroy this object")
		}
		return s.world.ApplyObjectDestroy(req.UID)

	case wire.KindAvatarTransformRequest:
		req, err := world.DecodeAvatarTransformRequest(s.r)
		if err != nil {
			return apperr.New(apperr.Malformed, "malformed avatar transform request")
		}
		pos := [3]float64{req.Pos.X, req.Pos.Y, req.Pos.Z}
		rot := [3]float32{req.Rotation.X, req.Rotation.Y, req.Rotation.Z}
		return s.world.ApplyAvatarTransformUpdate(s.avatarUID, pos, rot)

	default:
		return apperr.Newf(apperr.Malformed, "unexpected inbound kind %d", kind)
	}
}

// writePump drains the outbound queue in FIFO order and writes framed
// packets to the socket, grounded on the teacher's writePump.
func (s *Session) writePump(errCh chan<- error) {
	for {
		pkts, ok := s.Outbound.DrainBlocking()
		if !ok {
			errCh <- errSessionClosed
			return
		}
		for _, pkt := range pkts {
			if _, err := s.conn.Write(pkt.Bytes); err != nil {
				errCh <- err
				return
			}
		}
	}
}

func (s *Session) close() {
	s.Outbound.Close()
	s.conn.Close()
	if s.avatarUID != world.InvalidUID {
		s.world.ApplyAvatarDestroy(s.avatarUID)
	}
}

// Shutdown asks the session to stop: closing the connection unblocks
// whichever of readPump/writePump is currently suspended in a socket call,
// which in turn ends Run and triggers the same cleanup an I/O error would.
func (s *Session) Shutdown() {
	s.conn.Close()
}
