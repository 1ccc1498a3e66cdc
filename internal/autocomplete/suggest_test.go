package autocomplete

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range []string{
		"/videos/intro.mp4",
		"/videos/interlude.MKV",
		"/videos/notes.txt",
		"/videos/.hidden.mp4",
		"/videos/outro.webm",
	} {
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/videos/internal", 0o755))
	return fs
}

func TestSuggestListsDirectory(t *testing.T) {
	got, err := SuggestPaths(testFs(t), "/videos/", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/videos/internal/",
		"/videos/interlude.MKV",
		"/videos/intro.mp4",
		"/videos/outro.webm",
	}, got)
}

func TestSuggestFiltersByPrefix(t *testing.T) {
	got, err := SuggestPaths(testFs(t), "/videos/intr", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/videos/intro.mp4"}, got)

	got, err = SuggestPaths(testFs(t), "/videos/.h", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/videos/.hidden.mp4"}, got)
}

func TestSuggestLimit(t *testing.T) {
	got, err := SuggestPaths(testFs(t), "/videos/", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSuggestMissingDirectory(t *testing.T) {
	_, err := SuggestPaths(testFs(t), "/nope/", 0)
	assert.Error(t, err)
}
