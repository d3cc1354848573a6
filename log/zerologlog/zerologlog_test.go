package zerologlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unkn0wn-root/rendercache"
)

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("below level", rendercache.Fields{"key": "a"})
	l.Error("tag bump error", rendercache.Fields{"tag": "node:1", "err": errors.New("down")})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "tag bump error", rec["message"])
	assert.Equal(t, "node:1", rec["tag"])
	assert.Equal(t, "down", rec["err"])
	assert.Equal(t, "rendercache", rec["component"])
}
