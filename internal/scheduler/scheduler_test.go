package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balihoo/fulfillment-launcher/internal/catalog"
	"github.com/balihoo/fulfillment-launcher/internal/component"
	"github.com/balihoo/fulfillment-launcher/internal/splog"
	"github.com/balihoo/fulfillment-launcher/internal/taskqueue"
)

// fakeActivityQueue is a minimal in-memory taskqueue.ActivityQueue, letting
// handleTasks be exercised against a real Scheduler/Poller pair instead of
// only in isolation.
type fakeActivityQueue struct {
	mu        sync.Mutex
	tasks     []*taskqueue.ActivityTask
	completed []string
	failed    []string
}

func (f *fakeActivityQueue) Register(ctx context.Context) error { return nil }

func (f *fakeActivityQueue) Poll(ctx context.Context) (*taskqueue.ActivityTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tasks) == 0 {
		return nil, nil
	}
	t := f.tasks[0]
	f.tasks = f.tasks[1:]
	return t, nil
}

func (f *fakeActivityQueue) Complete(ctx context.Context, token, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, token+":"+result)
	return nil
}

func (f *fakeActivityQueue) Fail(ctx context.Context, token, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, token+":"+details)
	return nil
}

func (f *fakeActivityQueue) snapshot() (completed, failed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completed...), append([]string(nil), f.failed...)
}

func newShellComponent(t *testing.T, script string) *component.Component {
	t.Helper()
	return component.NewWithCmdline("test.Component", []string{"/bin/sh", "-c", script}, t.TempDir())
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}
}

func newTestScheduler(t *testing.T, buf *bytes.Buffer, poller *taskqueue.Poller) *Scheduler {
	t.Helper()
	log := splog.New(splog.Config{Writer: buf, System: "launcher"})
	return New(t.TempDir()+"/unused.jar", "", catalog.DefaultCatalog(), log, poller)
}

func logLines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// property 4: each death is logged at most once per exit, enforced by
// waiting.
func TestDeathLoggedAtMostOnce(t *testing.T) {
	skipWindows(t)
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)

	c := newShellComponent(t, "exit 0")
	_, err := c.Launch()
	require.NoError(t, err)
	s.mu.Lock()
	s.components["x"] = c
	s.mu.Unlock()

	require.Eventually(t, func() bool { return !c.IsAlive() }, 2*time.Second, time.Millisecond)

	s.handleDeadComponent(c, "x", time.Hour)
	s.handleDeadComponent(c, "x", time.Hour)
	s.handleDeadComponent(c, "x", time.Hour)

	died := 0
	for _, entry := range logLines(&buf) {
		if strings.Contains(entry["event"].(string), "died after") {
			died++
		}
	}
	assert.Equal(t, 1, died)
}

// property 5: relaunch never occurs before now - launch_time > cool_down.
func TestRelaunchRespectsCoolDown(t *testing.T) {
	skipWindows(t)
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)

	c := newShellComponent(t, "exit 0")
	_, err := c.Launch()
	require.NoError(t, err)
	s.mu.Lock()
	s.components["x"] = c
	s.mu.Unlock()

	require.Eventually(t, func() bool { return !c.IsAlive() }, 2*time.Second, time.Millisecond)

	s.handleDeadComponent(c, "x", time.Hour)
	assert.False(t, c.IsAlive(), "cool-down not elapsed, must not relaunch")

	s.handleDeadComponent(c, "x", 0)
	assert.True(t, c.IsAlive(), "cool-down elapsed, should relaunch")
	c.Kill()
}

// property 9: with no poller (--noworker), handle_tasks is a total no-op.
func TestHandleTasksNoOpWithoutPoller(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)
	assert.NotPanics(t, func() { s.handleTasks() })
}

// scenario S5/S6 (shared with catalog property 7): unknown class names
// resolve by passthrough and still attempt to launch.
func TestLaunchNewComponentPassesThroughUnknownName(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)
	c := s.LaunchNewComponent("nonexistentclassthatfails")
	// Launching a bogus "java" classpath with no real jar will fail to spawn
	// cleanly in most environments only if java itself is missing; either
	// way LaunchNewComponent must not panic and must return a nil component
	// on failure without touching the component set.
	if c == nil {
		s.mu.Lock()
		_, ok := s.components["nonexistentclassthatfails"]
		s.mu.Unlock()
		assert.False(t, ok)
	}
}

// scenario S4: a task the poller delivers is either launched and completed
// with its pid, or failed if it can't be spawned in this environment - never
// silently dropped.
func TestHandleTasksLaunchesDeliveredTask(t *testing.T) {
	var buf bytes.Buffer
	q := &fakeActivityQueue{tasks: []*taskqueue.ActivityTask{
		{TaskToken: "tok-1", Input: `{"classname":"htmlrenderer"}`},
	}}
	poller := taskqueue.NewPoller(q)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	s := newTestScheduler(t, &buf, poller)

	require.Eventually(t, func() bool {
		s.handleTasks()
		completed, failed := q.snapshot()
		return len(completed) > 0 || len(failed) > 0
	}, 2*time.Second, 10*time.Millisecond)

	completed, failed := q.snapshot()
	if len(completed) > 0 {
		assert.Contains(t, completed[0], "tok-1:")
	} else {
		assert.Contains(t, failed[0], "tok-1:")
	}
}

// spec §7: a task missing "classname" must be failed outright, never
// launched as if it had resolved to the first catalog entry.
func TestHandleTasksFailsTaskWithoutClassname(t *testing.T) {
	var buf bytes.Buffer
	q := &fakeActivityQueue{tasks: []*taskqueue.ActivityTask{
		{TaskToken: "tok-2", Input: `{}`},
	}}
	poller := taskqueue.NewPoller(q)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	s := newTestScheduler(t, &buf, poller)

	require.Eventually(t, func() bool {
		s.handleTasks()
		_, failed := q.snapshot()
		return len(failed) > 0
	}, 2*time.Second, 10*time.Millisecond)

	completed, failed := q.snapshot()
	assert.Empty(t, completed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "tok-2:")

	s.mu.Lock()
	_, launched := s.components["coordinator"]
	s.mu.Unlock()
	assert.False(t, launched, "missing classname must not silently launch the first catalog entry")
}

func TestTimeoutsValidate(t *testing.T) {
	ok := Timeouts{Ping: 5 * time.Second, Quit: 10 * time.Second, Terminate: 15 * time.Second, Kill: 20 * time.Second}
	assert.NoError(t, ok.Validate())

	bad := Timeouts{Ping: 10 * time.Second, Quit: 5 * time.Second, Terminate: 15 * time.Second, Kill: 20 * time.Second}
	assert.Error(t, bad.Validate())
}

// boundary property 8: tlhf = T.ping + ε triggers PING; tlhf = T.kill + ε
// triggers KILL; equality lands in the lower band.
func TestCheckResponsivenessBandBoundaries(t *testing.T) {
	skipWindows(t)
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)
	timeouts := Timeouts{Ping: 50 * time.Millisecond, Quit: 100 * time.Millisecond, Terminate: 150 * time.Millisecond, Kill: 200 * time.Millisecond}

	c := newShellComponent(t, "sleep 5")
	_, err := c.Launch()
	require.NoError(t, err)
	defer c.Kill()

	// Force lastHeardFrom into the past so tlhf lands just past the ping
	// band, then verify only Ping fires.
	c.SetLastHeardFromForTest(timeouts.Ping + 5*time.Millisecond)
	s.checkResponsiveness(c, timeouts)
	assert.Equal(t, component.Pinging, c.Responsiveness())

	// Just inside the ping boundary (tlhf <= T.ping), it must stay
	// responsive, not ping. Exact equality can't be hit with a live clock:
	// time passes between setting lastHeardFrom and the check.
	c2 := newShellComponent(t, "sleep 5")
	_, err = c2.Launch()
	require.NoError(t, err)
	defer c2.Kill()
	c2.SetLastHeardFromForTest(timeouts.Ping - 5*time.Millisecond)
	s.checkResponsiveness(c2, timeouts)
	assert.Equal(t, component.Responsive, c2.Responsiveness())
}

// scenario S1: launching more than one name staggers each launch attempt by
// 5s, regardless of whether the underlying spawn succeeds in this
// environment (no java toolchain is assumed to be installed here).
func TestLaunchStaggersMultipleComponents(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)

	start := time.Now()
	s.Launch("alpha", "beta")
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 5*time.Second)
	assert.Less(t, elapsed, 10*time.Second, "must not stagger after the last name too")
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(t, &buf, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Monitor(ctx, time.Hour, Timeouts{Ping: time.Second, Quit: 2 * time.Second, Terminate: 3 * time.Second, Kill: 4 * time.Second})
	assert.NoError(t, err)
}
