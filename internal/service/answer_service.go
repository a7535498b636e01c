package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

const (
	NoAnswerMessage = "Sorry, I could not find an answer to your question."
	ApologyMessage  = "Sorry, I could not generate an answer."

	contextSeparator       = "\n\n---\n\n"
	defaultMaxContextChars = 12000
)

type AnswerConfig struct {
	MaxContextChars int
	CacheSize       int
	CacheTTL        time.Duration
}

type AskResult struct {
	Answer   string               `json:"answer"`
	Sources  []model.SearchResult `json:"sources"`
	Fallback bool                 `json:"fallback"`
}

type AnswerService struct {
	answerer Answerer
	search   *SearchService
	cfg      AnswerConfig
	cache    *expirable.LRU[string, string]
}

func NewAnswerService(answerer Answerer, search *SearchService, cfg AnswerConfig) *AnswerService {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = defaultMaxContextChars
	}
	s := &AnswerService{answerer: answerer, search: search, cfg: cfg}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		s.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// Answer asks the model to answer question from the given chunks, in order.
func (s *AnswerService) Answer(ctx context.Context, question string, chunks []string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", appErr.Invalid("question is required")
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return "", appErr.Invalid("context is required")
	}
	contextText := BuildContext(parts, s.cfg.MaxContextChars)

	key := cacheKey(question, contextText)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			logutil.GetLogger(ctx).Debug("answer cache hit")
			return cached, nil
		}
	}
	answer, err := s.answerer.Answer(ctx, contextText, question)
	if err != nil {
		logutil.GetLogger(ctx).Error("answer synthesis failed", zap.Error(err))
		return "", appErr.Synthesis(err)
	}
	if s.cache != nil {
		s.cache.Add(key, answer)
	}
	return answer, nil
}

// Ask retrieves context for question and answers from it. With nothing
// retrieved, or when synthesis fails, a fixed fallback answer is returned.
func (s *AnswerService) Ask(ctx context.Context, question string, topK int) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, appErr.Invalid("question is required")
	}
	results, err := s.search.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &AskResult{Answer: NoAnswerMessage, Sources: results, Fallback: true}, nil
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	answer, err := s.Answer(ctx, question, texts)
	if err != nil {
		if errors.Is(err, appErr.ErrSynthesis) {
			logutil.GetLogger(ctx).Warn("ask fell back to apology", zap.Error(err))
			return &AskResult{Answer: ApologyMessage, Sources: results, Fallback: true}, nil
		}
		return nil, err
	}
	return &AskResult{Answer: answer, Sources: results}, nil
}

// BuildContext joins chunks in order while they fit in maxChars runes. A first
// chunk that alone exceeds the budget is truncated.
func BuildContext(chunks []string, maxChars int) string {
	if len(chunks) == 0 {
		return ""
	}
	sepLen := len([]rune(contextSeparator))
	var sb strings.Builder
	used := 0
	for i, c := range chunks {
		n := len([]rune(c))
		if i == 0 {
			if maxChars > 0 && n > maxChars {
				return string([]rune(c)[:maxChars])
			}
			sb.WriteString(c)
			used = n
			continue
		}
		if maxChars > 0 && used+sepLen+n > maxChars {
			break
		}
		sb.WriteString(contextSeparator)
		sb.WriteString(c)
		used += sepLen + n
	}
	return sb.String()
}

func cacheKey(question, contextText string) string {
	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(contextText))
	return hex.EncodeToString(h.Sum(nil))
}
