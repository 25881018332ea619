package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFidIsStableAndDeterministic(t *testing.T) {
	e := Environment{WorkDir: "/data/tor", CacheDir: "/cache/tor"}
	assert.Equal(t, e.Fid(), e.Fid())
	assert.Len(t, e.Fid(), 10)
}

func TestFidDiffersOnWorkDir(t *testing.T) {
	a := Environment{WorkDir: "/data/tor-a", CacheDir: "/cache/tor"}
	b := Environment{WorkDir: "/data/tor-b", CacheDir: "/cache/tor"}
	assert.NotEqual(t, a.Fid(), b.Fid())
}

func TestFidDiffersOnCacheDir(t *testing.T) {
	a := Environment{WorkDir: "/data/tor", CacheDir: "/cache/a"}
	b := Environment{WorkDir: "/data/tor", CacheDir: "/cache/b"}
	assert.NotEqual(t, a.Fid(), b.Fid())
}

func TestFidIgnoresUncleanPathDifferences(t *testing.T) {
	a := Environment{WorkDir: "/data/tor/", CacheDir: "/cache/tor"}
	b := Environment{WorkDir: "/data/tor", CacheDir: "/cache/tor"}
	assert.Equal(t, a.Fid(), b.Fid(), "filepath.Clean should normalize a trailing slash before hashing")
}
