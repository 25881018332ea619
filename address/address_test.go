package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIPv4(t *testing.T) {
	v, err := ParseIPv4("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", v.String())
	assert.Equal(t, "127.0.0.1", v.Canonical())

	_, err = ParseIPv4("::1")
	assert.Error(t, err)
	_, err = ParseIPv4("not-an-ip")
	assert.Error(t, err)

	assert.Nil(t, ParseIPv4OrNil("garbage"))
	assert.NotNil(t, ParseIPv4OrNil("10.0.0.1"))
}

func TestIPv4Equal(t *testing.T) {
	a, _ := ParseIPv4("1.2.3.4")
	b, _ := ParseIPv4("1.2.3.4")
	c, _ := ParseIPv4("1.2.3.5")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestParseIPv6(t *testing.T) {
	v, err := ParseIPv6("::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", v.String())
	assert.Equal(t, "[::1]", v.Canonical())

	v, err = ParseIPv6("[fe80::1%eth0]")
	require.NoError(t, err)
	assert.Equal(t, "fe80::1%eth0", v.String())

	_, err = ParseIPv6("1.2.3.4")
	assert.Error(t, err, "a v4-mapped literal is not a valid IPv6 for our purposes")

	assert.Nil(t, ParseIPv6OrNil("garbage"))
}

func TestIPv6EqualRespectsZone(t *testing.T) {
	a, _ := ParseIPv6("fe80::1%eth0")
	b, _ := ParseIPv6("fe80::1%eth0")
	c, _ := ParseIPv6("fe80::1%eth1")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestParsePort(t *testing.T) {
	p, err := ParsePort("9050")
	require.NoError(t, err)
	assert.Equal(t, Port(9050), p)
	assert.Equal(t, "9050", p.String())

	for _, bad := range []string{"0", "65536", "-1", "abc", ""} {
		_, err := ParsePort(bad)
		assert.Errorf(t, err, "expected %q to be rejected", bad)
	}
}

func TestParseProxyPort(t *testing.T) {
	p, err := ParseProxyPort("9150")
	require.NoError(t, err)
	assert.Equal(t, ProxyPort(9150), p)

	_, err = ParseProxyPort("80")
	assert.Error(t, err, "below ProxyPortMin should be rejected")

	_, err = ParseProxyPort("1024")
	assert.NoError(t, err, "ProxyPortMin itself is valid")
}

func TestParseFingerprint(t *testing.T) {
	hex40 := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	f, err := ParseFingerprint("$" + hex40)
	require.NoError(t, err)
	assert.Equal(t, "$"+hex40, f.String())

	f2, err := ParseFingerprint(hex40)
	require.NoError(t, err, "a missing leading $ on input is accepted")
	assert.True(t, f.Equal(f2))

	_, err = ParseFingerprint("$" + hex40[:39])
	assert.Error(t, err, "wrong length should be rejected")

	_, err = ParseFingerprint("$ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.Error(t, err, "non-hex digits should be rejected")
}

func TestFingerprintEqualIsCaseInsensitive(t *testing.T) {
	a, _ := ParseFingerprint("abcd1234abcd1234abcd1234abcd1234abcd1234")
	b, _ := ParseFingerprint("ABCD1234ABCD1234ABCD1234ABCD1234ABCD1234")
	assert.True(t, a.Equal(b))
}

func TestParseOnionValidAddress(t *testing.T) {
	const addr = "nytimesn7cgmftshazwhfgzm37qxb44r64ytbb2dj3x62d2lljsciiyd.onion"
	o, err := ParseOnion(addr)
	require.NoError(t, err)
	assert.Equal(t, addr, o.String())

	// The ".onion" suffix and case are both optional on input.
	o2, err := ParseOnion("NYTIMESN7CGMFTSHAZWHFGZM37QXB44R64YTBB2DJ3X62D2LLJSCIIYD")
	require.NoError(t, err)
	assert.True(t, o.Equal(o2))
	assert.Equal(t, o.PublicKey(), o2.PublicKey())
}

func TestParseOnionRejectsBadChecksum(t *testing.T) {
	// Flip the address's first character, which changes the decoded
	// pubkey without touching the trailing checksum/version bytes.
	const addr = "aytimesn7cgmftshazwhfgzm37qxb44r64ytbb2dj3x62d2lljsciiyd.onion"
	_, err := ParseOnion(addr)
	assert.Error(t, err)
}

func TestParseOnionRejectsWrongLength(t *testing.T) {
	_, err := ParseOnion("tooshort.onion")
	assert.Error(t, err)
}

func TestParseOnionOrNil(t *testing.T) {
	assert.Nil(t, ParseOnionOrNil("tooshort.onion"))
}

func TestParseSocketAddressTCP(t *testing.T) {
	sa, err := ParseSocketAddress("127.0.0.1:9051")
	require.NoError(t, err)
	assert.False(t, sa.Unix)
	assert.Equal(t, Port(9051), sa.Port)
	assert.Equal(t, "127.0.0.1:9051", sa.String())
}

func TestParseSocketAddressUnix(t *testing.T) {
	sa, err := ParseSocketAddress(`unix:"/var/run/tor/control"`)
	require.NoError(t, err)
	assert.True(t, sa.Unix)
	assert.Equal(t, "/var/run/tor/control", sa.Path)
	assert.Equal(t, `unix:"/var/run/tor/control"`, sa.String())
}

func TestParseSocketAddressUnixRejectsEmptyPath(t *testing.T) {
	_, err := ParseSocketAddress(`unix:""`)
	assert.Error(t, err)
}

func TestParseSocketAddressRejectsMalformedHostPort(t *testing.T) {
	_, err := ParseSocketAddress("not-a-host-port")
	assert.Error(t, err)
}
