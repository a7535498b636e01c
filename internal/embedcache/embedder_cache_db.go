package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/model"
)

// Store persists embeddings keyed by model, task type and content hash.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
	now   func() time.Time
}

// WrapDBCacheToEmbedder serves repeated texts from store. Cache failures are
// logged and never fail the embedding itself.
func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store, now: time.Now}
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	k := newKey(d.next.ModelName(), taskType, text)
	logger := logutil.GetLogger(ctx).With(zap.String("model", k.model), zap.String("task_type", taskType))

	vec, ok, err := d.store.Get(ctx, k.model, k.task, k.hash)
	switch {
	case err != nil:
		logger.Warn("embedding cache lookup failed", zap.Error(err))
	case ok:
		logger.Debug("embedding served from database")
		return vec, nil
	}

	vec, err = d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   k.model,
		TaskType:    k.task,
		ContentHash: k.hash,
		Embedding:   vec,
		Ctime:       d.now().Unix(),
	}); err != nil {
		logger.Warn("save embedding cache failed", zap.Error(err))
	}
	return vec, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
