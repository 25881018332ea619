// Package torconfig implements the typed Tor configuration model: the
// keyword catalogue, settings built from it, and torrc / control-wire
// rendering, including hidden-service composition.
package torconfig

// Keyword is a recognized Tor configuration option name. Keywords compare by
// identity (the underlying string), never by their Attrs.
type Keyword string

// Attrs describes the rendering/validation-relevant properties of a Keyword.
type Attrs struct {
	IsCmdLineArg   bool // emitted as a `--Keyword value` argv entry, not torrc/SETCONF
	IsDirectory    bool // value names a directory tor will create/use
	IsPort         bool // value is a Port/ProxyPort/"auto"/"disabled" and may carry flags
	IsUnixSocket   bool // value may be a unix:"path" form
	IsFile         bool // value names a file
	IsHiddenService bool // belongs to a HiddenService block
	IsStartupOnly  bool // cannot be changed via SETCONF/RESETCONF once running
	Deprecated     bool
}

// Well-known keywords. Attrs below is the closed catalogue; Keyword values
// outside it are rejected by Setting construction.
const (
	KeywordDataDirectory             Keyword = "DataDirectory"
	KeywordCacheDirectory            Keyword = "CacheDirectory"
	KeywordControlPort               Keyword = "ControlPort"
	KeywordControlPortWriteToFile    Keyword = "ControlPortWriteToFile"
	KeywordCookieAuthentication      Keyword = "CookieAuthentication"
	KeywordCookieAuthFile            Keyword = "CookieAuthFile"
	KeywordHashedControlPassword     Keyword = "HashedControlPassword"
	KeywordDisableNetwork            Keyword = "DisableNetwork"
	KeywordRunAsDaemon               Keyword = "RunAsDaemon"
	KeywordOwningControllerProcess   Keyword = "__OwningControllerProcess"
	KeywordGeoIPFile                 Keyword = "GeoIPFile"
	KeywordGeoIPv6File               Keyword = "GeoIPv6File"
	KeywordSocksPort                 Keyword = "__SocksPort"
	KeywordControlPortAuto           Keyword = "__ControlPort"
	KeywordDNSPort                   Keyword = "__DNSPort"
	KeywordHTTPTunnelPort            Keyword = "__HTTPTunnelPort"
	KeywordTransPort                 Keyword = "__TransPort"
	KeywordUnixSocksPort             Keyword = "__SocksPortUnix"
	KeywordHiddenServiceDir          Keyword = "HiddenServiceDir"
	KeywordHiddenServicePort         Keyword = "HiddenServicePort"
	KeywordHiddenServiceMaxStreams   Keyword = "HiddenServiceMaxStreams"
	KeywordHiddenServiceMaxStreamsCloseCircuit Keyword = "HiddenServiceMaxStreamsCloseCircuit"
	KeywordSocks5ProxyUsername       Keyword = "Socks5ProxyUsername"
	KeywordSocks5ProxyPassword       Keyword = "Socks5ProxyPassword"
	KeywordExitNodes                 Keyword = "ExitNodes"
	KeywordStrictNodes               Keyword = "StrictNodes"
	KeywordLog                       Keyword = "Log"
	KeywordAvoidDiskWrites           Keyword = "AvoidDiskWrites"
	KeywordMaxCircuitDirtiness       Keyword = "MaxCircuitDirtiness"
)

var catalogue = map[Keyword]Attrs{
	KeywordDataDirectory:           {IsDirectory: true, IsCmdLineArg: true},
	KeywordCacheDirectory:          {IsDirectory: true, IsCmdLineArg: true},
	KeywordControlPort:             {IsPort: true, IsUnixSocket: true, IsStartupOnly: true},
	KeywordControlPortWriteToFile:  {IsFile: true, IsStartupOnly: true, IsCmdLineArg: true},
	KeywordCookieAuthentication:    {IsStartupOnly: true, IsCmdLineArg: true},
	KeywordCookieAuthFile:          {IsFile: true, IsStartupOnly: true, IsCmdLineArg: true},
	KeywordHashedControlPassword:   {},
	KeywordDisableNetwork:          {IsCmdLineArg: true},
	KeywordRunAsDaemon:             {IsCmdLineArg: true},
	KeywordOwningControllerProcess: {IsCmdLineArg: true},
	KeywordGeoIPFile:               {IsFile: true, IsCmdLineArg: true},
	KeywordGeoIPv6File:             {IsFile: true, IsCmdLineArg: true},
	KeywordSocksPort:               {IsCmdLineArg: true, IsPort: true, IsUnixSocket: true},
	KeywordControlPortAuto:         {IsCmdLineArg: true, IsPort: true, IsStartupOnly: true},
	KeywordDNSPort:                 {IsCmdLineArg: true, IsPort: true},
	KeywordHTTPTunnelPort:          {IsCmdLineArg: true, IsPort: true},
	KeywordTransPort:               {IsCmdLineArg: true, IsPort: true},
	KeywordUnixSocksPort:           {IsCmdLineArg: true, IsPort: true, IsUnixSocket: true},
	KeywordHiddenServiceDir:        {IsDirectory: true, IsHiddenService: true},
	KeywordHiddenServicePort:       {IsPort: true, IsUnixSocket: true, IsHiddenService: true},
	KeywordHiddenServiceMaxStreams: {IsHiddenService: true},
	KeywordHiddenServiceMaxStreamsCloseCircuit: {IsHiddenService: true},
	KeywordSocks5ProxyUsername: {},
	KeywordSocks5ProxyPassword: {},
	KeywordExitNodes:           {},
	KeywordStrictNodes:         {},
	KeywordLog:                 {},
	KeywordAvoidDiskWrites:     {},
	KeywordMaxCircuitDirtiness: {},
}

// LookupAttrs returns the Attrs for k and whether k is recognized.
func LookupAttrs(k Keyword) (Attrs, bool) {
	a, ok := catalogue[k]
	return a, ok
}

// IsRecognized reports whether k belongs to the closed keyword catalogue.
func IsRecognized(k Keyword) bool {
	_, ok := catalogue[k]
	return ok
}
