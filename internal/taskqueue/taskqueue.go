// Package taskqueue wraps an external workflow-style task queue with a
// non-blocking, channel-based interface the scheduler can poll once per
// tick without ever stalling its monitor loop on the network.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeycumines/go-longpoll"
)

// ActivityTask is a single task handed out by the queue, before it's been
// decoded into a Task's Params.
type ActivityTask struct {
	TaskToken string
	Input     string
}

// ActivityQueue is the minimal surface Poller needs from a backing queue.
// Register must be idempotent: a conflict because the activity type
// already exists is not an error. Poll is expected to long-poll and may
// return (nil, nil) for an empty/heartbeat response.
type ActivityQueue interface {
	Register(ctx context.Context) error
	Poll(ctx context.Context) (*ActivityTask, error)
	Complete(ctx context.Context, token, result string) error
	Fail(ctx context.Context, token, details string) error
}

// Task is a queue task with its acknowledgement callbacks already bound to
// its token, so a caller never needs to see the token itself.
type Task struct {
	Params   map[string]any
	Complete func(result string) error
	Fail     func(details string) error
}

// Poller runs ActivityQueue.Poll on its own goroutine and delivers decoded
// tasks to a buffered channel. Get is a non-blocking receive: the
// scheduler calls it at most once per tick and never waits on the network.
type Poller struct {
	queue  ActivityQueue
	tasks  chan Task
	cancel context.CancelFunc
}

// NewPoller constructs a Poller over queue. It does not start polling;
// call Start.
func NewPoller(queue ActivityQueue) *Poller {
	return &Poller{
		queue: queue,
		tasks: make(chan Task, 16),
	}
}

// Start registers the activity type (tolerating "already exists") and
// launches the long-poll loop. It returns once registration succeeds or
// fails; the poll loop itself runs until ctx is cancelled or Stop is
// called.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.queue.Register(ctx); err != nil {
		return fmt.Errorf("taskqueue: register: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go func() {
		for {
			select {
			case <-loopCtx.Done():
				return
			default:
			}

			at, err := p.queue.Poll(loopCtx)
			if err != nil {
				if loopCtx.Err() != nil {
					return
				}
				time.Sleep(time.Second) // avoid hammering a queue that's erroring
				continue
			}
			if at == nil {
				continue
			}

			task, ok := p.decode(at)
			if !ok {
				continue
			}
			p.tasks <- task
		}
	}()

	return nil
}

func (p *Poller) decode(at *ActivityTask) (Task, bool) {
	var params map[string]any
	if err := json.Unmarshal([]byte(at.Input), &params); err != nil {
		return Task{}, false
	}
	token := at.TaskToken
	return Task{
		Params: params,
		Complete: func(result string) error {
			return p.queue.Complete(context.Background(), token, result)
		},
		Fail: func(details string) error {
			return p.queue.Fail(context.Background(), token, details)
		},
	}, true
}

// Stop halts the poll loop. It does not close the task channel, so any
// already-queued tasks remain available via Get.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Get is a non-blocking receive of at most one pending task.
func (p *Poller) Get() (Task, bool) {
	select {
	case t := <-p.tasks:
		return t, true
	default:
		return Task{}, false
	}
}

// Drain collects every task still sitting in the channel after Stop and
// fails each one, so a task SWF handed out doesn't simply vanish when the
// launcher process exits. It waits at most 200ms for stragglers to settle
// before giving up.
func (p *Poller) Drain(ctx context.Context, reason string) {
	cfg := &longpoll.ChannelConfig{
		MaxSize:        -1,
		MinSize:        -1,
		PartialTimeout: 200 * time.Millisecond,
	}
	drainCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = longpoll.Channel(drainCtx, cfg, p.tasks, func(task Task) error {
		_ = task.Fail(reason)
		return nil
	})
}
