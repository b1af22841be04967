package clip_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
)

const manifestYAML = `clips:
  - number: 2
    handle: outro
    unique_id: 22
    fps: 25
    frames: 100
  - number: 1
    handle: intro
    unique_id: 11
    name: Intro
    fps: 30
    frames: 50
    audio_seconds: 2.5
    audio_rate: 48000
    channels: 2
`

func TestReadManifest(t *testing.T) {
	t.Parallel()

	reg, err := clip.ReadManifest(strings.NewReader(manifestYAML))
	require.NoError(t, err)

	c, ok := reg.Clip(1)
	require.True(t, ok)
	assert.Equal(t, "intro", c.Handle)
	assert.Equal(t, uint64(11), c.UniqueID)
	assert.InDelta(t, 2.5, c.AudioSeconds, 0)
	assert.Len(t, reg.All(), 2)
}

func TestReadManifest_Empty(t *testing.T) {
	t.Parallel()

	reg, err := clip.ReadManifest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, reg.All())
}

func TestReadManifest_Rejects(t *testing.T) {
	t.Parallel()

	_, err := clip.ReadManifest(strings.NewReader("clips:\n  - number: 1\n    fps: 25\n    colour: red\n"))
	require.Error(t, err)

	_, err = clip.ReadManifest(strings.NewReader("clips:\n  - number: 1\n    fps: 0\n"))
	require.ErrorIs(t, err, clip.ErrInvalidClip)
}

func TestWriteManifest_RoundTrip(t *testing.T) {
	t.Parallel()

	reg, err := clip.ReadManifest(strings.NewReader(manifestYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, clip.WriteManifest(&buf, reg))

	again, err := clip.ReadManifest(&buf)
	require.NoError(t, err)
	assert.Equal(t, reg.All(), again.All())
}
