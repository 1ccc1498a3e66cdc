package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyTime(t *testing.T) {
	assert.Equal(t, "0:00", PrettyTime(-time.Second))
	assert.Equal(t, "0:09", PrettyTime(9*time.Second))
	assert.Equal(t, "1:30", PrettyTime(90*time.Second))
	assert.Equal(t, "1:02:03", PrettyTime(time.Hour+2*time.Minute+3*time.Second))
}

func TestParseDurationString(t *testing.T) {
	cases := map[string]time.Duration{
		"90":      90 * time.Second,
		"1.5":     1500 * time.Millisecond,
		"1:30":    90 * time.Second,
		"1:02:03": time.Hour + 2*time.Minute + 3*time.Second,
		"1m30s":   90 * time.Second,
		"2h":      2 * time.Hour,
		" 45s ":   45 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseDurationString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "1:-5", "m"} {
		_, err := ParseDurationString(bad)
		assert.Error(t, err, bad)
	}
}

func TestAtoi(t *testing.T) {
	assert.Equal(t, 0, Atoi(""))
	assert.Equal(t, 0, Atoi("x"))
	assert.Equal(t, 42, Atoi("42"))
}

func TestCandidateURLs(t *testing.T) {
	urls, err := CandidateURLs("127.0.0.1:8765")
	require.NoError(t, err)
	assert.Equal(t, []string{"ws://127.0.0.1:8765"}, urls)

	urls, err = CandidateURLs(":9000")
	require.NoError(t, err)
	require.NotEmpty(t, urls)
	for _, u := range urls {
		assert.True(t, strings.HasPrefix(u, "ws://"), u)
		assert.True(t, strings.HasSuffix(u, ":9000"), u)
		assert.NotContains(t, u, "127.0.0.1:9000:")
	}

	_, err = CandidateURLs("no-port")
	assert.Error(t, err)
}
