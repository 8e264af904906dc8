package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURLEquivalentForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips default https port", "https://example.com:443/page", "https://example.com/page"},
		{"strips default http port", "http://example.com:80/page", "http://example.com/page"},
		{"keeps non-default port", "https://example.com:8443/page", "https://example.com:8443/page"},
		{"drops fragment", "https://example.com/page#section", "https://example.com/page"},
		{"sorts query parameters", "https://example.com/page?b=2&a=1", "https://example.com/page?a=1&b=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := NormalizeURL("/about")
	require.Error(t, err)

	_, err = NormalizeURL("about.html")
	require.Error(t, err)
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	require.True(t, SameHost("https://example.com/a", "http://EXAMPLE.com/b"))
	require.False(t, SameHost("https://example.com/a", "https://other.com/a"))
	require.False(t, SameHost("://bad", "https://example.com"))
}
