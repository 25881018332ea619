package torconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingRejectsUnknownKeyword(t *testing.T) {
	_, err := NewSetting(Keyword("NotARealOption"), "1")
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidValue, ce.Kind)
}

func TestHiddenServiceToSettingLineOrder(t *testing.T) {
	hs := HiddenService{
		Dir: "/var/lib/tor/hs1",
		Ports: []HiddenServicePort{
			{Virtual: 80, Target: "127.0.0.1:8080"},
			{Virtual: 443, Target: "127.0.0.1:8443"},
		},
		MaxStreams:             5,
		MaxStreamsCloseCircuit: true,
	}
	s, applied, err := hs.ToSetting()
	require.NoError(t, err)
	require.True(t, applied)

	require.Len(t, s.Items, 5)
	assert.Equal(t, KeywordHiddenServiceDir, s.Items[0].Keyword)
	assert.Equal(t, "/var/lib/tor/hs1", s.Items[0].Argument)
	assert.Equal(t, KeywordHiddenServicePort, s.Items[1].Keyword)
	assert.Equal(t, "80 127.0.0.1:8080", s.Items[1].Argument)
	assert.Equal(t, KeywordHiddenServicePort, s.Items[2].Keyword)
	assert.Equal(t, "443 127.0.0.1:8443", s.Items[2].Argument)
	assert.Equal(t, KeywordHiddenServiceMaxStreams, s.Items[3].Keyword)
	assert.Equal(t, "5", s.Items[3].Argument)
	assert.Equal(t, KeywordHiddenServiceMaxStreamsCloseCircuit, s.Items[4].Keyword)
	assert.Equal(t, "1", s.Items[4].Argument)
}

func TestHiddenServiceToSettingNoPortsIsNotApplied(t *testing.T) {
	hs := HiddenService{Dir: "/var/lib/tor/hs1"}
	s, applied, err := hs.ToSetting()
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, s.Items)
}

func TestHiddenServiceToSettingRequiresDir(t *testing.T) {
	hs := HiddenService{Ports: []HiddenServicePort{{Virtual: 80, Target: "127.0.0.1:8080"}}}
	_, _, err := hs.ToSetting()
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrMissingRequired, ce.Kind)
}

func TestConfigAddAndGet(t *testing.T) {
	var cfg Config
	s, err := NewSetting(KeywordDisableNetwork, "1")
	require.NoError(t, err)
	require.NoError(t, cfg.Add(s))

	got, ok := cfg.Get(KeywordDisableNetwork)
	require.True(t, ok)
	assert.Equal(t, "1", got.Items[0].Argument)

	_, ok = cfg.Get(KeywordControlPort)
	assert.False(t, ok)
}

func TestConfigAddRejectsUnrecognizedKeyword(t *testing.T) {
	var cfg Config
	bad := Setting{Items: []LineItem{{Keyword: "Bogus", Argument: "x"}}}
	err := cfg.Add(bad)
	require.Error(t, err)
}

func TestValidateMutationRejectsStartupOnly(t *testing.T) {
	err := ValidateMutation(KeywordControlPort)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrStartupOnly, ce.Kind)
}

func TestValidateMutationAllowsMutableKeyword(t *testing.T) {
	assert.NoError(t, ValidateMutation(KeywordExitNodes))
}

func TestValidateMutationRejectsUnknownKeyword(t *testing.T) {
	err := ValidateMutation(Keyword("NotReal"))
	require.Error(t, err)
}
