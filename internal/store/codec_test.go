package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/mockdata"
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	results := analytics.FromMetrics(mockdata.SiteMetrics())
	profile := mockdata.TechProfile("github.com")
	results[1].BuiltWith = &profile

	payload, err := EncodeResults(results)
	require.NoError(t, err)

	got, found, err := DecodeResults(payload)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, results, got)
}

func TestDecodeResultsDoubleEncoded(t *testing.T) {
	t.Parallel()

	results := analytics.FromMetrics(mockdata.SiteMetricsFor([]string{"github.com"}))
	payload, err := EncodeResults(results)
	require.NoError(t, err)
	wrapped, err := json.Marshal(string(payload))
	require.NoError(t, err)

	got, found, err := DecodeResults(wrapped)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, results, got)
}

func TestDecodeResultsEmpty(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  ", "null", `"null"`, `""`} {
		got, found, err := DecodeResults([]byte(raw))
		require.NoError(t, err, raw)
		require.False(t, found, raw)
		require.Nil(t, got)
	}

	_, _, err := DecodeResults([]byte(`{"not":"an array"}`))
	require.Error(t, err)
}

func TestEncodeNilResults(t *testing.T) {
	t.Parallel()

	payload, err := EncodeResults(nil)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(payload))
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var s ResultStore = Noop{}
	require.NoError(t, s.SaveResults(context.Background(), "u1", nil))
	got, found, err := s.LoadResults(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, got)
	s.Close()
}
