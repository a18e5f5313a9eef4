// Package classify infers the emotional tone of finalized user turns with
// the Gemini API. Classification is strictly best-effort: rate limits,
// quota pressure, and malformed model output all degrade to a neutral
// result rather than an error surfaced to the conversation.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/engine"
)

const classifyPrompt = `Analyze the emotional tone of the following message.
Respond with ONLY a JSON object, no other text:
{"emotion": "<one of: happy, sad, angry, anxious, neutral, excited, confused, frustrated>",
 "confidence": <0.0-1.0>,
 "intensity": <0.0-1.0>,
 "reasoning": "<one short sentence>"}

Message: %q`

// Options tune the service's throttling behavior.
type Options struct {
	// MaxCalls per Window admitted to the model; excess calls return the
	// neutral fallback.
	MaxCalls int
	Window   time.Duration
	// CacheTTL bounds how long an identical text reuses a prior result.
	CacheTTL time.Duration
	// MinInterval is the shortest gap between model calls; calls inside
	// the gap reuse the most recent result.
	MinInterval time.Duration
}

// Service classifies text with Gemini. It implements the engine's
// Classifier interface.
type Service struct {
	client *genai.Client
	model  string
	logger *slog.Logger

	limiter *rateLimiter
	cache   *ttlCache[engine.Classification]

	mu          sync.Mutex
	minInterval time.Duration
	lastAt      time.Time
	lastResult  engine.Classification
	hasLast     bool

	now func() time.Time
}

// New builds a Service backed by the Gemini API.
func New(ctx context.Context, apiKey, model string, opts Options, logger *slog.Logger) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("classify: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: create client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:      client,
		model:       model,
		logger:      logger,
		limiter:     newRateLimiter(opts.MaxCalls, opts.Window),
		cache:       newTTLCache[engine.Classification](opts.CacheTTL),
		minInterval: opts.MinInterval,
		now:         time.Now,
	}, nil
}

// Neutral is the fallback result used whenever inference is skipped or
// fails in a recoverable way.
func Neutral() engine.Classification {
	return engine.Classification{Emotion: types.EmotionNeutral, Confidence: 0.5, Intensity: 0.5}
}

// Classify infers the emotion of text. It never blocks the caller on
// throttling: throttled calls return a cached, recent, or neutral result
// immediately.
func (s *Service) Classify(ctx context.Context, text string) (engine.Classification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Neutral(), nil
	}

	key := cacheKey(text)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	if recent, ok := s.recentResult(); ok {
		return recent, nil
	}

	if !s.limiter.allow() {
		s.logger.Debug("classification rate limited", "len", len(text))
		return Neutral(), nil
	}

	result, err := s.infer(ctx, text)
	if err != nil {
		return Neutral(), core.NewClassificationError("emotion inference failed", err)
	}

	s.cache.put(key, result)
	s.remember(result)
	return result, nil
}

// recentResult returns the last inference when it is newer than the
// minimum call interval.
func (s *Service) recentResult() (engine.Classification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLast || s.minInterval <= 0 {
		return engine.Classification{}, false
	}
	if s.now().Sub(s.lastAt) >= s.minInterval {
		return engine.Classification{}, false
	}
	return s.lastResult, true
}

func (s *Service) remember(result engine.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = result
	s.lastAt = s.now()
	s.hasLast = true
}

func (s *Service) infer(ctx context.Context, text string) (engine.Classification, error) {
	prompt := fmt.Sprintf(classifyPrompt, text)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return engine.Classification{}, err
	}
	return parseResponse(resp.Text())
}

// parseResponse decodes the model's JSON reply. Models occasionally wrap
// JSON in markdown fences; strip them before decoding.
func parseResponse(raw string) (engine.Classification, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result engine.Classification
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return engine.Classification{}, fmt.Errorf("decode model reply: %w", err)
	}
	if !result.Emotion.Valid() {
		result.Emotion = types.EmotionNeutral
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		result.Confidence = 0.5
	}
	if result.Intensity < 0 || result.Intensity > 1 {
		result.Intensity = 0.5
	}
	return result, nil
}
