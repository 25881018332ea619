// Package runtime is the public API: Environment describes where a tor
// instance lives on disk, Runtime ties together configgen/process/control/
// state/event for one instance, Registry deduplicates instances sharing an
// Environment, and ActionProcessor serializes Start/Stop/Restart against a
// Runtime.
package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	xdg "github.com/cep21/xdgbasedir"
)

// Environment is the set of filesystem paths that identify one logical
// tor instance. Two Environments with the same WorkDir+CacheDir share the
// same fid and therefore the same Registry entry.
type Environment struct {
	WorkDir     string
	CacheDir    string
	GeoIPFile   string
	GeoIPv6File string
	TorBinary   string // "" uses process.Supervisor's default ("tor")
}

// Fid computes the correlation key spec §3 calls "fid": the first 10 hex
// characters of sha256(workDir + "\x00" + cacheDir), taken over the
// cleaned absolute-as-given paths (callers are expected to pass paths
// already resolved the way they want them deduplicated; Fid does not
// itself call filepath.Abs, matching the teacher's config package, which
// resolves XDG paths once at load time rather than per comparison).
func (e Environment) Fid() string {
	clean := filepath.Clean(e.WorkDir) + "\x00" + filepath.Clean(e.CacheDir)
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])[:10]
}

// DefaultEnvironment resolves WorkDir/CacheDir under the XDG base
// directories for appName, the way the teacher's config package resolves
// its UserDataDir/TorDataDir from xdg.DataHomeDirectory — generalized off
// that GUI app's fixed appDir into a caller-supplied name. Callers that
// already know their own paths (tests, embedders with their own directory
// policy) should build an Environment literal instead.
func DefaultEnvironment(appName string) (Environment, error) {
	dataHome, err := xdg.DataHomeDirectory()
	if err != nil {
		return Environment{}, err
	}
	cacheHome, err := xdg.CacheHomeDirectory()
	if err != nil {
		return Environment{}, err
	}
	return Environment{
		WorkDir:  filepath.Join(dataHome, appName, "tor-data"),
		CacheDir: filepath.Join(cacheHome, appName, "tor-cache"),
	}, nil
}
