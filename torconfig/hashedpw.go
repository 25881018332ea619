package torconfig

import (
	"bytes"
	"crypto"
	"crypto/rand"
	_ "crypto/sha1" // registers crypto.SHA1 for s2k
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/openpgp/s2k"
)

// HashPassword hashes plain using the RFC2440 S2K variant tor's
// HashedControlPassword expects: "16:" + hex(salt || count byte ||
// iterated SHA1 hash),
// matching `tor --hash-password`. Grounded on the teacher's
// CfgToSandboxTorrc, which computes the same value for its generated
// control port password.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", &ConfigError{Kind: ErrInvalidValue, Keyword: KeywordHashedControlPassword, Detail: "empty password"}
	}

	b := &bytes.Buffer{}
	key := make([]byte, 20)
	if err := s2k.Serialize(b, key, rand.Reader, []byte(plain), &s2k.Config{Hash: crypto.SHA1}); err != nil {
		return "", fmt.Errorf("torconfig: hash password: %w", err)
	}
	b.Write(key)

	// s2k.Serialize writes a 2-byte header (S2K type + hash algo id), then
	// the 8-byte salt and the iteration count byte; tor's own format omits
	// the header, keeping salt||count||iterated-hash.
	if b.Len() < 2 {
		return "", fmt.Errorf("torconfig: hash password: unexpected s2k output length %d", b.Len())
	}
	return "16:" + hex.EncodeToString(b.Bytes()[2:]), nil
}
