package photo

import "context"

type Result struct {
	Prompt string
	Image  *Image
	Err    error
}

// Go runs one RandomImage call in the background. The returned channel
// receives exactly one Result and is then closed.
func Go(ctx context.Context, c Client, prompt string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		img, err := c.RandomImage(ctx, prompt)
		out <- Result{Prompt: prompt, Image: img, Err: err}
	}()
	return out
}
