// Package gatewaytest provides a scripted gateway.Completer for tests.
package gatewaytest

import (
	"context"
	"errors"
	"sync"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	errx "github.com/hr-benefits-assistant/server/internal/core/error"
)

const Apology = "Sorry, the assistant is unavailable."

// Completer answers each task from a queue of scripted replies. A task with
// no queued reply, or one listed in Fail, degrades with the apology.
type Completer struct {
	mu        sync.Mutex
	replies   map[string][]string
	fail      map[string]error
	requests  []gateway.Request
	Available bool
}

func New() *Completer {
	return &Completer{
		replies:   map[string][]string{},
		fail:      map[string]error{},
		Available: true,
	}
}

// Reply queues replies for a task.
func (c *Completer) Reply(task string, replies ...string) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[task] = append(c.replies[task], replies...)
	return c
}

// Fail makes every call for task degrade with err.
func (c *Completer) Fail(task string, err error) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[task] = err
	return c
}

func (c *Completer) Complete(_ context.Context, req gateway.Request) gateway.Completion {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	if err, ok := c.fail[req.Task]; ok {
		return gateway.Completion{Text: Apology, Degraded: true, Err: errx.WrapInference(err)}
	}
	queue := c.replies[req.Task]
	if len(queue) == 0 {
		return gateway.Completion{Text: Apology, Degraded: true, Err: errx.WrapInference(errors.New("no scripted reply"))}
	}
	c.replies[req.Task] = queue[1:]
	return gateway.Completion{Text: queue[0]}
}

func (c *Completer) IsAvailable(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Available
}

// Requests returns the calls made so far for task, or all calls when task is empty.
func (c *Completer) Requests(task string) []gateway.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []gateway.Request
	for _, r := range c.requests {
		if task == "" || r.Task == task {
			out = append(out, r)
		}
	}
	return out
}
