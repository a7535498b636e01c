package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
)

type lruEmbedder struct {
	next    ai.IEmbedder
	vectors *expirable.LRU[key, []float32]
}

// WrapLruCacheToEmbedder keeps up to size recent embeddings in memory for ttl.
// Callers get their own copy of a cached vector.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:    e,
		vectors: expirable.NewLRU[key, []float32](size, nil, ttl),
	}
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	k := newKey(l.next.ModelName(), taskType, text)
	if vec, ok := l.vectors.Get(k); ok {
		logutil.GetLogger(ctx).Debug("embedding served from memory", zap.String("task_type", taskType))
		return cloneVector(vec), nil
	}
	vec, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.vectors.Add(k, cloneVector(vec))
	return vec, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}
