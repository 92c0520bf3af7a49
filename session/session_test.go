package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberspace/auth"
	"cyberspace/metrics"
	"cyberspace/resource"
	"cyberspace/wire"
	"cyberspace/world"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	// A loopback TCP pair rather than net.Pipe: doHandshake writes its
	// AuthResponse before the tests read anything, which needs a buffered
	// socket to return.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	serverConn, err := ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	w := world.New(metrics.NewRecorder(nil))
	reg := resource.NewRegistry(t.TempDir())
	authMgr := auth.NewManager(w)
	_, err = authMgr.Register("alice", "correct horse battery staple", "alice@example.invalid")
	require.NoError(t, err)

	sess := New(serverConn, w, reg, authMgr, 0)
	return sess, clientConn
}

func TestDoHandshakeSucceedsWithValidHelloAndCredentials(t *testing.T) {
	sess, client := newTestSession(t)

	go func() {
		client.Write(world.EncodeHello().Bytes)
		client.Write(world.EncodeAuthRequest("alice", "correct horse battery staple").Bytes)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- sess.doHandshake() }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("doHandshake did not return")
	}
	assert.NotEqual(t, world.InvalidUID, sess.avatarUID)

	client.SetReadDeadline(time.Now().Add(time.Second))
	r := wire.NewStreamReader(client)
	kind, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, wire.KindAuthResponse, kind)
}

func TestDoHandshakeRejectsWrongProtocolMagic(t *testing.T) {
	sess, client := newTestSession(t)

	go func() {
		buf := wire.GetBuffer()
		w := wire.NewWriter(buf)
		w.U32(wire.KindHello)
		w.U32(0xdeadbeef)
		w.U32(world.ProtocolVersion)
		client.Write(buf.Bytes())
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- sess.doHandshake() }()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("doHandshake did not return")
	}
}

func TestDoHandshakeRejectsWrongFirstPacketKind(t *testing.T) {
	sess, client := newTestSession(t)

	go func() {
		client.Write(world.EncodeAuthRequest("alice", "whatever").Bytes)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- sess.doHandshake() }()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("doHandshake did not return")
	}
}

func TestDoHandshakeRejectsBadCredentials(t *testing.T) {
	sess, client := newTestSession(t)

	go func() {
		client.Write(world.EncodeHello().Bytes)
		client.Write(world.EncodeAuthRequest("alice", "wrong password").Bytes)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- sess.doHandshake() }()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("doHandshake did not return")
	}
}

func TestHandleInboundObjectCreateRequest(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.userID = world.UserID(1)

	req := world.ObjectCreateRequest{Type: world.ObjectGeneric, Content: "a cube"}
	pkt := world.EncodeObjectCreateRequest(req)
	r := wire.NewReader(pkt.Bytes[4:])
	sess.r = r

	require.NoError(t, sess.handleInbound(wire.KindObjectCreateRequest))

	objs := sess.world.AllObjects()
	require.Len(t, objs, 1)
	assert.Equal(t, "a cube", objs[0].Content)
	assert.Equal(t, world.UserID(1), objs[0].OwnerUserID)
}

func TestHandleInboundObjectUpdateRequestDeniedForNonOwner(t *testing.T) {
	sess, _ := newTestSession(t)
	uid, err := sess.world.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric, OwnerUserID: world.UserID(1)}, world.InvalidUID)
	require.NoError(t, err)
	sess.userID = world.UserID(2)

	transform := world.Transform{}
	pkt := world.EncodeObjectUpdateRequest(uid, world.ObjectPatch{Transform: &transform})
	sess.r = wire.NewReader(pkt.Bytes[4:])

	err = sess.handleInbound(wire.KindObjectUpdateRequest)
	assert.Error(t, err)
}

func TestHandleInboundObjectDestroyRequestAllowedForOwner(t *testing.T) {
	sess, _ := newTestSession(t)
	uid, err := sess.world.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric, OwnerUserID: world.UserID(1)}, world.InvalidUID)
	require.NoError(t, err)
	sess.userID = world.UserID(1)

	pkt := world.EncodeObjectDestroyRequest(uid)
	sess.r = wire.NewReader(pkt.Bytes[4:])

	require.NoError(t, sess.handleInbound(wire.KindObjectDestroyRequest))
	ob, ok := sess.world.GetObject(uid)
	require.True(t, ok, "removal from the map is deferred to the tick loop's drain, not immediate")
	assert.Equal(t, world.Dead, ob.Lifecycle)

	drained := sess.world.DrainDirtyObjects()
	require.Len(t, drained, 2, "create and destroy happened in the same dirty window, so both snapshots drain together")
	_, ok = sess.world.GetObject(uid)
	assert.False(t, ok, "the object should be removed from the map once drained")
}

func TestHandleInboundAvatarTransformRequest(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.avatarUID = sess.world.ApplyAvatarCreate(world.Avatar{OwnerUserID: 1})

	req := world.AvatarTransformRequest{Pos: wire.Vec3F64{X: 1, Y: 2, Z: 3}, Rotation: wire.Vec3F32{X: 0, Y: 1, Z: 0}}
	pkt := world.EncodeAvatarTransformRequest(req)
	sess.r = wire.NewReader(pkt.Bytes[4:])

	require.NoError(t, sess.handleInbound(wire.KindAvatarTransformRequest))
	av, ok := sess.world.GetAvatar(sess.avatarUID)
	require.True(t, ok)
	assert.Equal(t, 1.0, av.Pos.X)
}

func TestHandleInboundUnknownKindReturnsMalformed(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.r = wire.NewReader(nil)
	err := sess.handleInbound(999999)
	assert.Error(t, err)
}
