package health

import (
	"context"
	"fmt"
	"time"
)

// StalenessChecker reports a component degraded when its last activity is older than
// maxAge, and unhealthy when it is older than twice that or never happened.
type StalenessChecker struct {
	name   string
	last   func() time.Time
	maxAge time.Duration
	now    func() time.Time
}

// NewStalenessChecker creates a checker named name that reads the last activity from last.
func NewStalenessChecker(name string, last func() time.Time, maxAge time.Duration) *StalenessChecker {
	return &StalenessChecker{name: name, last: last, maxAge: maxAge, now: time.Now}
}

func (c *StalenessChecker) Name() string {
	return c.name
}

func (c *StalenessChecker) Check(context.Context) *ComponentHealth {
	now := c.now()
	last := c.last()

	h := &ComponentHealth{
		Name:        c.name,
		Status:      StatusHealthy,
		LastChecked: now,
	}
	if last.IsZero() {
		h.Status = StatusUnhealthy
		h.Message = "no activity recorded yet"
		return h
	}

	age := now.Sub(last)
	h.Metadata = map[string]interface{}{"age_ms": age.Milliseconds()}
	switch {
	case age > 2*c.maxAge:
		h.Status = StatusUnhealthy
		h.Message = fmt.Sprintf("last activity %s ago", age.Round(time.Millisecond))
	case age > c.maxAge:
		h.Status = StatusDegraded
		h.Message = fmt.Sprintf("last activity %s ago", age.Round(time.Millisecond))
	}
	return h
}

// StaticChecker always reports healthy with the given metadata. Useful for components that
// have no failure mode but should still show up in the health report.
type StaticChecker struct {
	name     string
	metadata func() map[string]interface{}
}

// NewStaticChecker creates a checker named name. metadata may be nil.
func NewStaticChecker(name string, metadata func() map[string]interface{}) *StaticChecker {
	return &StaticChecker{name: name, metadata: metadata}
}

func (c *StaticChecker) Name() string {
	return c.name
}

func (c *StaticChecker) Check(context.Context) *ComponentHealth {
	h := &ComponentHealth{Name: c.name, Status: StatusHealthy, LastChecked: time.Now()}
	if c.metadata != nil {
		h.Metadata = c.metadata()
	}
	return h
}
