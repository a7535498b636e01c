package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
)

// StubEmbedder returns deterministic unit vectors derived from the text.
type StubEmbedder struct {
	Dim int
	// FailOn makes Embed return its error for matching texts.
	FailOn func(text string) error
	// Gate, when set, blocks every call until it is closed.
	Gate chan struct{}
	// Started receives once per call before Gate is awaited.
	Started chan struct{}

	calls atomic.Int64
}

func NewStubEmbedder(dim int) *StubEmbedder {
	return &StubEmbedder{Dim: dim}
}

func (s *StubEmbedder) Calls() int {
	return int(s.calls.Load())
}

func (s *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.Started != nil {
		select {
		case s.Started <- struct{}{}:
		default:
		}
	}
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.FailOn != nil {
		if err := s.FailOn(text); err != nil {
			return nil, err
		}
	}
	return Vector(text, s.Dim), nil
}

func (s *StubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.Embed(ctx, text)
}

// Vector hashes text into a normalized vector of dim components.
func Vector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 8
	}
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		_, _ = h.Write([]byte(text))
		v := float64(h.Sum32()%2000)/1000 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / n)
	}
	return vec
}

// StubAnswerer records prompts and returns Reply or Err.
type StubAnswerer struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Contexts []string
}

func (s *StubAnswerer) Answer(ctx context.Context, contextText, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Contexts = append(s.Contexts, contextText)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

func (s *StubAnswerer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Contexts)
}

func (s *StubAnswerer) Summarize(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}
