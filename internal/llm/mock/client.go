package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/askweb/internal/llm"
)

// Reply - один заранее заданный ответ.
type Reply struct {
	Text string
	Err  error
}

type Client struct {
	Response string
	Error    error
	Delay    time.Duration

	// Replies отдаются по очереди; когда закончатся, используется Response/Error.
	Replies []Reply
	// Handler, если задан, имеет приоритет над всем остальным.
	Handler func(system, prompt string) (string, error)

	mu         sync.Mutex
	CallCount  int
	LastSystem string
	LastPrompt string
	AllCalls   []LLMCall
}

type LLMCall struct {
	System string
	Prompt string
}

func New() *Client {
	return &Client{
		Response: "This is a mock response.",
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) WithReplies(replies ...Reply) *Client {
	c.Replies = append(c.Replies, replies...)
	return c
}

func (c *Client) WithHandler(fn func(system, prompt string) (string, error)) *Client {
	c.Handler = fn
	return c
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastSystem = system
	c.LastPrompt = prompt
	c.AllCalls = append(c.AllCalls, LLMCall{System: system, Prompt: prompt})

	var next *Reply
	if len(c.Replies) > 0 {
		r := c.Replies[0]
		c.Replies = c.Replies[1:]
		next = &r
	}
	c.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.Delay):
		}
	}

	if c.Handler != nil {
		return c.Handler(system, prompt)
	}

	if next != nil {
		return next.Text, next.Err
	}

	if c.Error != nil {
		return "", c.Error
	}

	return c.Response, nil
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

// CallsWithSystem считает вызовы с заданной системной инструкцией.
func (c *Client) CallsWithSystem(system string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.AllCalls {
		if call.System == system {
			n++
		}
	}
	return n
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastSystem = ""
	c.LastPrompt = ""
	c.AllCalls = nil
	c.Replies = nil
}

var _ llm.Client = (*Client)(nil)
