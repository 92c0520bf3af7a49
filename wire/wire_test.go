package wire

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderPrimitivesRoundTrip(t *testing.T) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	w := NewWriter(buf)
	w.U32(42)
	w.U64(1 << 40)
	w.F32(1.5)
	w.F64(-3.25)
	w.Bool(true)
	w.Bool(false)
	w.String("hello world")

	r := NewReader(buf.Bytes())
	u32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u32)

	u64, err := r.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	f32, err := r.F32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)

	f64, err := r.F64()
	require.NoError(t, err)
	assert.Equal(t, -3.25, f64)

	b1, err := r.Bool()
	require.NoError(t, err)
	assert.True(t, b1)

	b2, err := r.Bool()
	require.NoError(t, err)
	assert.False(t, b2)

	s, err := r.StringCapped(MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)

	assert.Equal(t, 0, r.Remaining())
}

func TestStringCappedRejectsOverLengthPrefix(t *testing.T) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	w := NewWriter(buf)
	w.String("this string is fine")

	r := NewReader(buf.Bytes())
	_, err := r.StringCapped(4)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVecCountRejectsOverCap(t *testing.T) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	w := NewWriter(buf)
	w.U32(MaxVecCount + 1)

	r := NewReader(buf.Bytes())
	_, err := r.VecCount()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReaderRejectsTruncatedFixedBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestStreamReaderDecodesAcrossShortWrites exercises the property the
// session worker depends on: a Reader built over a live connection reads
// fields transparently even when the bytes backing them arrive in several
// separate writes, since the wire format carries no outer length prefix.
func TestStreamReaderDecodesAcrossShortWrites(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	buf := GetBuffer()
	defer PutBuffer(buf)
	w := NewWriter(buf)
	w.U32(7)
	w.U64(99)
	w.String("partial-write-survives")
	full := buf.Bytes()

	go func() {
		// Dribble the bytes out a handful at a time so need() has to pull
		// more than once per field.
		for i := 0; i < len(full); i += 3 {
			end := i + 3
			if end > len(full) {
				end = len(full)
			}
			clientConn.Write(full[i:end])
			time.Sleep(time.Millisecond)
		}
	}()

	r := NewStreamReader(serverConn)
	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))

	got32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got32)

	got64, err := r.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(99), got64)

	gotStr, err := r.StringCapped(MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, "partial-write-survives", gotStr)
}

func TestStreamReaderPropagatesEOF(t *testing.T) {
	r := NewStreamReader(bytes.NewReader(nil))
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestStreamReaderPropagatesIOError(t *testing.T) {
	r := NewStreamReader(&errReader{})
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrMalformed)
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestIsCriticalKind(t *testing.T) {
	assert.True(t, IsCriticalKind(KindObjectCreated))
	assert.True(t, IsCriticalKind(KindObjectFullUpdate))
	assert.True(t, IsCriticalKind(KindObjectDestroyed))
	assert.True(t, IsCriticalKind(KindAvatarCreated))
	assert.True(t, IsCriticalKind(KindTimeSyncMessage))
	assert.True(t, IsCriticalKind(KindErrorMessage))
	assert.True(t, IsCriticalKind(KindAuthResponse))
	assert.False(t, IsCriticalKind(KindObjectTransformUpdate))
	assert.False(t, IsCriticalKind(KindAvatarTransformUpdate))
}

func TestVec3RoundTrip(t *testing.T) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	w := NewWriter(buf)
	v64 := Vec3F64{X: 1.1, Y: -2.2, Z: 3.3}
	v32 := Vec3F32{X: 4, Y: 5, Z: 6}
	vi := Vec3I32{X: -1, Y: 0, Z: 1}
	v64.WriteTo(w)
	v32.WriteTo(w)
	vi.WriteTo(w)

	r := NewReader(buf.Bytes())
	got64, err := ReadVec3F64(r)
	require.NoError(t, err)
	assert.Equal(t, v64, got64)

	got32, err := ReadVec3F32(r)
	require.NoError(t, err)
	assert.Equal(t, v32, got32)

	gotI, err := ReadVec3I32(r)
	require.NoError(t, err)
	assert.Equal(t, vi, gotI)
}
