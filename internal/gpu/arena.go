package gpu

// Arena releases GPU resources in reverse acquisition order. Constructors
// register the release of every handle as soon as it exists, so a failure
// halfway through construction releases exactly what was acquired.
type Arena struct {
	releases []func()
}

// Defer registers a release function.
func (a *Arena) Defer(release func()) {
	a.releases = append(a.releases, release)
}

// Len reports how many releases are pending.
func (a *Arena) Len() int {
	return len(a.releases)
}

// Release runs every pending release, newest first, and empties the arena.
func (a *Arena) Release() {
	for i := len(a.releases) - 1; i >= 0; i-- {
		a.releases[i]()
	}
	a.releases = nil
}
