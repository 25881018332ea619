package runtime

import "sync"

// Registry is a mutex-guarded "fid -> instance" map (spec §9's design
// note): within one Registry, at most one *Runtime exists per distinct
// Environment at a time, so two callers configuring the same WorkDir share
// one supervised tor process instead of racing to spawn two.
type Registry struct {
	mu   sync.Mutex
	byID map[string]*Runtime
}

// NewRegistry builds an empty Registry. Most processes want exactly one;
// it is exported rather than a package-level var so tests can use an
// isolated instance per test.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Runtime)}
}

// GetOrCreate returns the Runtime already registered for env's Fid, or
// calls factory to build one and registers it. factory runs at most once
// per fid, even under concurrent callers, and is called while the
// Registry's lock is held — it must not itself call back into this
// Registry.
func (r *Registry) GetOrCreate(env Environment, factory func() (*Runtime, error)) (*Runtime, error) {
	fid := env.Fid()

	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.byID[fid]; ok {
		return rt, nil
	}
	rt, err := factory()
	if err != nil {
		return nil, err
	}
	r.byID[fid] = rt
	return rt, nil
}

// Drop removes env's Runtime from the Registry, if present, without
// affecting the Runtime's own lifecycle (callers stop it separately).
func (r *Registry) Drop(env Environment) {
	r.mu.Lock()
	delete(r.byID, env.Fid())
	r.mu.Unlock()
}

// Get returns the Runtime registered for env's Fid, if any.
func (r *Registry) Get(env Environment) (*Runtime, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.byID[env.Fid()]
	return rt, ok
}
