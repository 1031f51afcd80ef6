// Package settings holds the small piece of mutable site configuration
// (the landing-page hero banner) behind a container with lock-free reads
// and serialized writes. There is no ambient global: the container is
// injected where needed.
package settings

import "sync/atomic"

// Hero is the landing-page banner configuration.
type Hero struct {
	RecruitmentText string `json:"recruitmentText"`
	ApplyLink       string `json:"applyLink"`
}

// Container stores the current Hero value. Get never blocks; Replace
// swaps the whole value atomically.
type Container struct {
	current atomic.Pointer[Hero]
}

// NewContainer seeds a container with the given initial value.
func NewContainer(initial Hero) *Container {
	c := &Container{}
	c.current.Store(&initial)
	return c
}

// Get returns the current value.
func (c *Container) Get() Hero {
	return *c.current.Load()
}

// Replace swaps in a new value. Later Gets observe it.
func (c *Container) Replace(next Hero) {
	c.current.Store(&next)
}
