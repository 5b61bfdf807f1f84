package graph

// fakeHost is a minimal Host used to exercise Target.Build without pulling
// in the engine package (which itself depends on graph).
type fakeHost struct {
	registry     *Registry
	clean        bool
	forceAll     bool
	executed     []string
	executeErr   error
	executeKeep  bool
	executeThunk func(t *Target) (ran bool, keep bool, err error)
}

func newFakeHost() *fakeHost {
	return &fakeHost{registry: NewRegistry(), executeKeep: true}
}

func (h *fakeHost) Registry() *Registry          { return h.registry }
func (h *fakeHost) CleanMode() bool              { return h.clean }
func (h *fakeHost) GlobalForceRebuild() bool      { return h.forceAll }

func (h *fakeHost) Execute(t *Target, resolved []Buildable, depends string) (bool, bool, error) {
	h.executed = append(h.executed, t.Name)
	if h.executeThunk != nil {
		return h.executeThunk(t)
	}
	if h.executeErr != nil {
		return false, false, h.executeErr
	}
	return true, h.executeKeep, nil
}
