package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	req, err := NewRequest(NewID("tools/list-1"), "tools/list", map[string]any{"cursor": "abc"})
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(req))

	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
	assert.False(t, bytes.Contains(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n")))

	r := NewReader(&buf)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "tools/list-1", got.ID.String())
	assert.Equal(t, "tools/list", *got.Method)
}

func TestReaderToleratesCRLF(t *testing.T) {
	r := NewReader(bytes.NewBufferString(`{"jsonrpc":"2.0","id":"1","method":"ping"}` + "\r\n"))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "ping", *f.Method)
}

func TestReaderReportsNonJSONLine(t *testing.T) {
	r := NewReader(bytes.NewBufferString("server starting up...\n"))
	_, err := r.ReadFrame()
	require.Error(t, err)
	var notJSON *ErrNotJSON
	assert.ErrorAs(t, err, &notJSON)
}

func TestReaderSkipsBlankLines(t *testing.T) {
	r := NewReader(bytes.NewBufferString("\n\n{\"jsonrpc\":\"2.0\",\"id\":\"1\",\"method\":\"ping\"}\n"))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "ping", *f.Method)
}

func TestIDEquality(t *testing.T) {
	a := NewID("init-1")
	b := NewID("init-1")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewID("init-2")))

	var empty *ID
	assert.True(t, empty.IsEmpty())
}

func TestIDEqualityCrossType(t *testing.T) {
	str := &ID{Value: "1"}
	num := &ID{Value: float64(1)}
	assert.False(t, str.Equal(num))
	assert.False(t, num.Equal(str))
	assert.True(t, num.Equal(&ID{Value: float64(1)}))
}
