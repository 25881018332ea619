package configgen

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torctl/torctl/address"
	"github.com/torctl/torctl/torconfig"
)

func alwaysAvailable(string, address.ProxyPort) bool { return true }
func neverAvailable(string, address.ProxyPort) bool  { return false }

func TestGenerateSeedsMandatorySettings(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache", PID: 4242}
	cfg, err := Generate(context.Background(), paths, nil, Options{Probe: alwaysAvailable})
	require.NoError(t, err)

	for _, kw := range []torconfig.Keyword{
		torconfig.KeywordDataDirectory,
		torconfig.KeywordCacheDirectory,
		torconfig.KeywordControlPortWriteToFile,
		torconfig.KeywordCookieAuthFile,
		torconfig.KeywordCookieAuthentication,
		torconfig.KeywordDisableNetwork,
		torconfig.KeywordRunAsDaemon,
		torconfig.KeywordOwningControllerProcess,
	} {
		_, ok := cfg.Get(kw)
		assert.Truef(t, ok, "expected mandatory keyword %s to be present", kw)
	}

	dd, _ := cfg.Get(torconfig.KeywordDataDirectory)
	assert.Equal(t, "/data", dd.Items[0].Argument)
}

func TestGenerateDefaultsSocksAndControlPortWhenUnset(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	cfg, err := Generate(context.Background(), paths, nil, Options{Probe: alwaysAvailable})
	require.NoError(t, err)

	socks, ok := cfg.Get(torconfig.KeywordSocksPort)
	require.True(t, ok)
	assert.Equal(t, defaultSocksPort.String(), socks.Items[0].Argument)

	ctrl, ok := cfg.Get(torconfig.KeywordControlPortAuto)
	require.True(t, ok)
	assert.Equal(t, "auto", ctrl.Items[0].Argument)
}

func TestGenerateHonorsCallbackSocksPort(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	cb := func(b *Builder) error {
		b.SetSocksPort(address.ProxyPort(9150))
		return nil
	}
	cfg, err := Generate(context.Background(), paths, []func(*Builder) error{cb}, Options{Probe: alwaysAvailable})
	require.NoError(t, err)

	socks, ok := cfg.Get(torconfig.KeywordSocksPort)
	require.True(t, ok)
	assert.Equal(t, "9150", socks.Items[0].Argument)
}

func TestGenerateSuppressGeoIP(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache", GeoIPFile: "/geo/ip", GeoIPv6File: "/geo/ip6"}
	cfg, err := Generate(context.Background(), paths, nil, Options{Probe: alwaysAvailable, SuppressGeoIP: true})
	require.NoError(t, err)
	_, ok := cfg.Get(torconfig.KeywordGeoIPFile)
	assert.False(t, ok)
	_, ok = cfg.Get(torconfig.KeywordGeoIPv6File)
	assert.False(t, ok)
}

func TestGenerateIncludesGeoIPWhenProvidedAndNotSuppressed(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache", GeoIPFile: "/geo/ip"}
	cfg, err := Generate(context.Background(), paths, nil, Options{Probe: alwaysAvailable})
	require.NoError(t, err)
	geo, ok := cfg.Get(torconfig.KeywordGeoIPFile)
	require.True(t, ok)
	assert.Equal(t, "/geo/ip", geo.Items[0].Argument)
}

func TestGenerateReassignsUnavailablePortToAuto(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	cb := func(b *Builder) error {
		b.SetSocksPort(address.ProxyPort(9150))
		return nil
	}
	cfg, err := Generate(context.Background(), paths, []func(*Builder) error{cb}, Options{Probe: neverAvailable})
	require.NoError(t, err)

	socks, ok := cfg.Get(torconfig.KeywordSocksPort)
	require.True(t, ok)
	assert.Equal(t, "auto", socks.Items[0].Argument, "an unavailable port is rewritten to the literal \"auto\", not reassigned to a different number")
}

func TestGenerateDisablePortReassignReturnsTypedError(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	cb := func(b *Builder) error {
		b.SetSocksPort(address.ProxyPort(9150))
		return nil
	}
	_, err := Generate(context.Background(), paths, []func(*Builder) error{cb}, Options{Probe: neverAvailable, DisablePortReassign: true})
	require.Error(t, err)
	var ce *torconfig.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, torconfig.ErrPortUnavailable, ce.Kind)
}

func TestGenerateDoesNotReassignAutoOrDisabled(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	cb := func(b *Builder) error {
		b.DisableSocksPort()
		return nil
	}
	cfg, err := Generate(context.Background(), paths, []func(*Builder) error{cb}, Options{Probe: neverAvailable})
	require.NoError(t, err)
	socks, ok := cfg.Get(torconfig.KeywordSocksPort)
	require.True(t, ok)
	assert.Equal(t, "0", socks.Items[0].Argument)
}

func TestGeneratePropagatesCallbackError(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	boom := assert.AnError
	cb := func(b *Builder) error { return boom }
	_, err := Generate(context.Background(), paths, []func(*Builder) error{cb}, Options{Probe: alwaysAvailable})
	require.ErrorIs(t, err, boom)
}

func TestGenerateHiddenServiceWithNoPortsIsDropped(t *testing.T) {
	paths := Paths{WorkDir: "/data", CacheDir: "/cache"}
	cb := func(b *Builder) error {
		b.AddHiddenService(torconfig.HiddenService{Dir: "/data/hs1"})
		return nil
	}
	cfg, err := Generate(context.Background(), paths, []func(*Builder) error{cb}, Options{Probe: alwaysAvailable})
	require.NoError(t, err)
	_, ok := cfg.Get(torconfig.KeywordHiddenServiceDir)
	assert.False(t, ok)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir() + "/sub/nested"
	require.NoError(t, EnsureDirectories(dir))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}
