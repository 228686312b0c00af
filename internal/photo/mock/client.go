package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/imagen-bot/internal/photo"
)

type Client struct {
	Image *photo.Image
	Error error
	Delay time.Duration
	// Gate, when set, holds every call until it is closed or receives.
	Gate chan struct{}

	CallCount  int
	LastPrompt string
	AllPrompts []string

	mu sync.Mutex
}

func New() *Client {
	return &Client{}
}

func (c *Client) WithImage(img *photo.Image) *Client {
	c.Image = img
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

func (c *Client) WithGate(gate chan struct{}) *Client {
	c.Gate = gate
	return c
}

func (c *Client) RandomImage(ctx context.Context, prompt string) (*photo.Image, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastPrompt = prompt
	c.AllPrompts = append(c.AllPrompts, prompt)
	delay := c.Delay
	gate := c.Gate
	err := c.Error
	img := c.Image
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, photo.NetworkError(ctx.Err())
		case <-gate:
		}
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, photo.NetworkError(ctx.Err())
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	if img == nil {
		return nil, photo.InvalidResponse(nil)
	}

	cp := *img
	return &cp, nil
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastPrompt = ""
	c.AllPrompts = nil
}
