package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type fallbackGenerator struct {
	entries []GeneratorEntry
}

// NewGroupGenerator tries each generator in order and returns the first
// answer. Embedders are never grouped since vectors from different models do
// not share a space.
func NewGroupGenerator(entries []GeneratorEntry) IGenerator {
	usable := make([]GeneratorEntry, 0, len(entries))
	for _, e := range entries {
		if e.Generator != nil {
			usable = append(usable, e)
		}
	}
	switch len(usable) {
	case 0:
		return nil
	case 1:
		return usable[0].Generator
	}
	return &fallbackGenerator{entries: usable}
}

func (g *fallbackGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	errs := make([]error, 0, len(g.entries))
	for _, e := range g.entries {
		out, err := e.Generator.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		if ctx.Err() != nil {
			break
		}
		logutil.GetLogger(ctx).Warn("generator failed, trying next", zap.String("name", e.Name), zap.Error(err))
	}
	return "", errors.Join(errs...)
}
