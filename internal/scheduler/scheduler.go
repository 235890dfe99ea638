// Package scheduler is the launcher's outer loop: it owns the set of
// running components, multiplexes their supervision with external task
// intake from a taskqueue.Poller, resolves logical class-name requests
// against the catalog, and enforces the relaunch cool-down.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/balihoo/fulfillment-launcher/internal/catalog"
	"github.com/balihoo/fulfillment-launcher/internal/component"
	"github.com/balihoo/fulfillment-launcher/internal/splog"
	"github.com/balihoo/fulfillment-launcher/internal/taskqueue"
)

// Timeouts holds the four escalation thresholds, in ascending order.
type Timeouts struct {
	Ping      time.Duration
	Quit      time.Duration
	Terminate time.Duration
	Kill      time.Duration
}

// Validate checks the band ordering ping < quit < terminate < kill. A
// scheduler built with an invalid Timeouts would silently skip bands, so
// this is checked once at startup rather than on every tick.
func (t Timeouts) Validate() error {
	if !(t.Ping < t.Quit && t.Quit < t.Terminate && t.Terminate < t.Kill) {
		return fmt.Errorf("scheduler: timeouts must satisfy ping < quit < terminate < kill, got %+v", t)
	}
	return nil
}

// Scheduler owns a named set of components and drives their supervision.
type Scheduler struct {
	jar     string
	agent   string
	catalog catalog.Catalog
	log     *splog.Logger
	poller  *taskqueue.Poller // nil when run with --noworker

	mu         sync.Mutex
	components map[string]*component.Component
}

// New constructs a Scheduler. poller may be nil, matching --noworker.
func New(jar, agent string, cat catalog.Catalog, log *splog.Logger, poller *taskqueue.Poller) *Scheduler {
	return &Scheduler{
		jar:        jar,
		agent:      agent,
		catalog:    cat,
		log:        log,
		poller:     poller,
		components: make(map[string]*component.Component),
	}
}

// Launch starts one component per name in names, or every enabled catalog
// entry if names is empty, pausing 5s between each launch the way the
// original staggers JVM startup to avoid a thundering herd of cold-start
// components contending for CPU/IO at once. It returns the number of
// components that actually spawned, so a caller can tell a total launch
// failure from a partial one.
func (s *Scheduler) Launch(names ...string) int {
	if len(names) == 0 {
		names = s.catalog.DefaultLaunchSet()
	}
	launched := 0
	for i, name := range names {
		if s.LaunchNewComponent(name) != nil {
			launched++
		}
		if i < len(names)-1 {
			time.Sleep(5 * time.Second)
		}
	}
	return launched
}

// LaunchNewComponent resolves className against the catalog, builds a new
// Component, launches it, and stores it under its resolved short name,
// replacing any prior component registered under the same name. Every
// launch attempt carries its own correlation id on its "Unable to launch" or
// "Launched" line; the child's later output lines are logged with pid and
// procname only, not the correlation id.
func (s *Scheduler) LaunchNewComponent(className string) *component.Component {
	correlationID := uuid.NewString()
	resolved := s.catalog.Resolve(className)
	c := component.New(s.jar, resolved, s.agent)

	pid, err := c.Launch()
	if err != nil {
		s.log.Error("Unable to launch", splog.Fields{
			"jar":            s.jar,
			"procname":       c.Name(),
			"correlation_id": correlationID,
			"error":          err.Error(),
		})
		return nil
	}
	s.log.Info("Launched", splog.Fields{
		"pid":            fmt.Sprint(pid),
		"procname":       c.Name(),
		"correlation_id": correlationID,
	})

	s.mu.Lock()
	s.components[c.Name()] = c
	count := len(s.components)
	s.mu.Unlock()

	s.log.Info(fmt.Sprintf("Managing %d processes", count), nil)
	return c
}

// Monitor runs the endless supervision loop until ctx is cancelled:
// handle at most one queued task, then for each component drain its
// output, check liveness/responsiveness, and enforce the relaunch
// cool-down; sleep 200ms and repeat.
func (s *Scheduler) Monitor(ctx context.Context, coolDown time.Duration, timeouts Timeouts) error {
	if err := timeouts.Validate(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.handleTasks()

		s.mu.Lock()
		names := make([]string, 0, len(s.components))
		for name := range s.components {
			names = append(names, name)
		}
		s.mu.Unlock()

		for _, name := range names {
			s.mu.Lock()
			c := s.components[name]
			s.mu.Unlock()
			if c == nil {
				continue
			}
			s.logComponent(c)
			if c.IsAlive() {
				s.checkResponsiveness(c, timeouts)
				continue
			}
			s.handleDeadComponent(c, name, coolDown)
		}

		time.Sleep(200 * time.Millisecond)
	}
}

func (s *Scheduler) logComponent(c *component.Component) {
	fields := splog.Fields{
		"pid":      fmt.Sprint(c.PID()),
		"procname": c.Name(),
	}
	for _, line := range c.Stdout() {
		s.log.Info("stdout: "+line, fields)
	}
	for _, line := range c.Stderr() {
		s.log.Error("stderr: "+line, fields)
	}
}

func (s *Scheduler) handleDeadComponent(c *component.Component, name string, coolDown time.Duration) {
	sinceLaunch := time.Since(c.LaunchTime())
	if !c.Waiting() {
		s.log.Error(fmt.Sprintf("died after %f seconds", sinceLaunch.Seconds()), splog.Fields{
			"pid":      fmt.Sprint(c.PID()),
			"procname": name,
		})
		c.SetWaiting(true)
	}
	if sinceLaunch <= coolDown {
		return
	}
	pid, err := c.Launch()
	if err != nil {
		s.log.Error("Unable to launch", splog.Fields{"procname": name, "error": err.Error()})
		return
	}
	s.log.Warn("relaunched", splog.Fields{"pid": fmt.Sprint(pid), "procname": name})
}

// checkResponsiveness implements the band table as an ordered threshold
// scan (highest band first) rather than nested if/else, so each band's
// idempotence is easy to verify independently: the corresponding
// Component method itself refuses to repeat an already-current state.
func (s *Scheduler) checkResponsiveness(c *component.Component, timeouts Timeouts) {
	tlhf := time.Since(c.LastHeardFrom())
	fields := splog.Fields{
		"pid":      fmt.Sprint(c.PID()),
		"procname": c.Name(),
	}

	if tlhf <= timeouts.Ping {
		c.Responsive()
		return
	}

	switch {
	case tlhf > timeouts.Kill:
		if c.Kill() {
			s.log.Error(fmt.Sprintf("no response for %f seconds: kill", tlhf.Seconds()), fields)
		}
	case tlhf > timeouts.Terminate:
		if c.Terminate() {
			s.log.Error(fmt.Sprintf("no response for %f seconds: terminate", tlhf.Seconds()), fields)
		}
	case tlhf > timeouts.Quit:
		if c.Quit() {
			s.log.Warn(fmt.Sprintf("no response for %f seconds: quit", tlhf.Seconds()), fields)
		}
	default:
		if c.Ping() {
			s.log.Info(fmt.Sprintf("no response for %f seconds: ping", tlhf.Seconds()), fields)
		}
	}
}

// handleTasks drains at most one task per tick. With no poller configured
// (--noworker) it is a total no-op, never touching a nil poller.
func (s *Scheduler) handleTasks() {
	if s.poller == nil {
		return
	}
	task, ok := s.poller.Get()
	if !ok {
		return
	}

	className, ok := task.Params["classname"].(string)
	if !ok || className == "" {
		msg := `task missing required "classname" parameter`
		s.log.Error("failed to decode task", splog.Fields{"error": msg})
		if err := task.Fail(msg); err != nil {
			s.log.Error("failed to fail task", splog.Fields{"error": err.Error()})
		}
		return
	}

	c := s.LaunchNewComponent(className)
	if c == nil {
		msg := fmt.Sprintf("unable to launch %s", className)
		s.log.Error("failed to launch component from task", splog.Fields{"error": msg})
		if err := task.Fail(msg); err != nil {
			s.log.Error("failed to fail task", splog.Fields{"error": err.Error()})
		}
		return
	}
	if err := task.Complete(fmt.Sprint(c.PID())); err != nil {
		s.log.Error("failed to complete task", splog.Fields{"error": err.Error()})
	}
}
