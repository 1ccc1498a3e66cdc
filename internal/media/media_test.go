package media

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/videos/a.mp4", []byte("x"), 0o644))

	f, err := CheckExists(fs, "/videos/a.mp4")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = CheckExists(fs, "/videos/missing.mp4")
	assert.ErrorIs(t, err, ErrMediaNotFound)

	_, err = CheckExists(fs, "/videos")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestProbeMissingFileSkipsDecoder(t *testing.T) {
	p := NewAVProber(afero.NewMemMapFs(), time.Second)
	_, err := p.Probe(t.Context(), "/nope.mp4")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestInfoHelpers(t *testing.T) {
	info := Info{Width: 4, Height: 2}
	assert.Equal(t, 24, info.FrameSize())

	assert.InDelta(t, 29.97, Fraction{Num: 30000, Den: 1001}.Float64(), 0.001)
	assert.Zero(t, Fraction{Num: 1}.Float64())
	assert.Equal(t, "25/1", Fraction{Num: 25, Den: 1}.String())
}

func TestOpenRejectsInvalidDimensions(t *testing.T) {
	_, err := (&AVOpener{}).Open("/a.mp4", 0, 10, func([]byte, time.Duration) {})
	assert.ErrorIs(t, err, ErrPipeline)
}
