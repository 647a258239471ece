package geoip

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutable(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":     true,
		"2001:4860::": true,
		"127.0.0.1":   false,
		"10.1.2.3":    false,
		"192.168.0.9": false,
		"169.254.1.1": false,
		"::1":         false,
		"0.0.0.0":     false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Routable(netip.MustParseAddr(raw)), raw)
	}
}

func TestNilResolverSkipsLocalAddresses(t *testing.T) {
	var r *Resolver

	code, err := r.CountryCode("127.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, code)

	code, err = r.CountryCode("::ffff:10.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, code)

	_, err = r.CountryCode("8.8.8.8")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = r.CountryCode("not-an-ip")
	assert.Error(t, err)

	assert.NoError(t, r.Close())
}

func TestNewResolverWithoutPath(t *testing.T) {
	r, err := NewResolver("  ")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = NewResolver("/nonexistent/GeoLite2-Country.mmdb")
	assert.Error(t, err)
}
