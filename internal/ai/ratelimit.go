package ai

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

// WrapRateLimit caps outbound embedding calls at rps requests per second.
// A non-positive rps disables the limit.
func WrapRateLimit(next IEmbedder, rps float64, burst int) IEmbedder {
	if next == nil || rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (e *rateLimitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, text, taskType)
}

func (e *rateLimitedEmbedder) ModelName() string {
	return e.next.ModelName()
}
