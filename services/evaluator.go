package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasonachkar/persuade/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	OutcomeModel    = "model"
	OutcomeFallback = "fallback"

	defaultEvaluationTimeout = 45 * time.Second
)

// Fallback comment pools, one per rubric aspect
var fallbackComments = map[string][]string{
	models.AspectListeningSkills: {
		"Could improve active listening by acknowledging customer concerns more frequently",
		"Need to ask more follow-up questions to understand customer needs",
		"Try to avoid interrupting the customer when they're speaking",
		"Work on reflecting back what the customer says to show understanding",
	},
	models.AspectProductKnowledge: {
		"Should provide more specific details about product features",
		"Need to better explain how product benefits address customer needs",
		"Try to use more concrete examples when describing product capabilities",
		"Work on presenting technical information in a more digestible way",
	},
	models.AspectObjectionHandling: {
		"Could improve response to pricing concerns",
		"Need to address customer hesitations more directly",
		"Try to better validate customer concerns before offering solutions",
		"Work on providing more compelling counterpoints to objections",
	},
	models.AspectCommunicationStyle: {
		"Could use a more confident tone when presenting solutions",
		"Need to improve clarity in explaining complex concepts",
		"Try to maintain a more professional demeanor throughout",
		"Work on using more positive language in challenging situations",
	},
}

const FallbackSummary = "This evaluation highlights several areas for improvement. " +
	"Focus on enhancing your listening skills and product knowledge while developing a more " +
	"effective approach to handling objections. Regular practice will help refine these skills."

// Evaluator scores a finished conversation. Any provider or parsing failure is
// masked by a locally generated result of the same shape.
type Evaluator struct {
	scorer  Scorer
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	meterProvider metric.MeterProvider
	counter       metric.Int64Counter
	modelCount    atomic.Int64
	fallbackCount atomic.Int64
}

type EvaluatorOption func(*Evaluator)

// WithRandSeed makes fallback results deterministic
func WithRandSeed(seed uint64) EvaluatorOption {
	return func(e *Evaluator) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithMeterProvider reports the outcome counter to mp instead of the global provider
func WithMeterProvider(mp metric.MeterProvider) EvaluatorOption {
	return func(e *Evaluator) {
		e.meterProvider = mp
	}
}

func WithEvaluationTimeout(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.timeout = d
	}
}

// NewEvaluator creates an evaluator; a nil scorer always uses the fallback
func NewEvaluator(scorer Scorer, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		scorer:        scorer,
		timeout:       defaultEvaluationTimeout,
		rng:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(e)
	}

	counter, err := e.meterProvider.Meter(instrumentationName).Int64Counter(
		"persuade.evaluations",
		metric.WithDescription("Evaluations produced, by outcome"),
	)
	if err != nil {
		slog.Warn("Failed to create evaluation counter", "error", err)
	}
	e.counter = counter
	return e
}

// Evaluate never fails: callers get the same result shape for model and fallback scoring
func (e *Evaluator) Evaluate(ctx context.Context, messages []models.Message, scenario models.ScenarioSelection) *models.EvaluationResult {
	ctx, span := tracer.Start(ctx, "Evaluator.Evaluate")
	defer span.End()

	if e.scorer == nil {
		return e.fallback(ctx, "no scoring provider configured")
	}
	if len(messages) == 0 {
		return e.fallback(ctx, "empty transcript")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	system, prompt := BuildEvaluationPrompt(messages, scenario)
	raw, err := e.scorer.ScoreConversation(ctx, system, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring request failed")
		return e.fallback(ctx, fmt.Errorf("%w: %v", ErrEvaluation, err).Error())
	}

	result, err := ParseEvaluation(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid evaluation")
		return e.fallback(ctx, err.Error())
	}

	e.record(ctx, OutcomeModel)
	slog.Info("Evaluation completed", "overall_score", result.OverallScore, "messages", len(messages))
	return result
}

// FallbackEvaluate produces a low, randomized result from the fixed comment pools
func (e *Evaluator) FallbackEvaluate() *models.EvaluationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.rng.IntN(26) + 20 // [20, 45]
	aspectScore := float64(max(1, n/20))

	feedback := make([]models.AspectFeedback, 0, len(models.Aspects))
	for _, aspect := range models.Aspects {
		pool := fallbackComments[aspect]
		feedback = append(feedback, models.AspectFeedback{
			Aspect:  aspect,
			Score:   aspectScore,
			Comment: pool[e.rng.IntN(len(pool))],
		})
	}

	return &models.EvaluationResult{
		OverallScore:     float64(n) / 20,
		DetailedFeedback: feedback,
		Summary:          FallbackSummary,
	}
}

func (e *Evaluator) fallback(ctx context.Context, reason string) *models.EvaluationResult {
	slog.Warn("Using fallback evaluation", "reason", reason)
	e.record(ctx, OutcomeFallback)
	return e.FallbackEvaluate()
}

func (e *Evaluator) record(ctx context.Context, outcome string) {
	if outcome == OutcomeModel {
		e.modelCount.Add(1)
	} else {
		e.fallbackCount.Add(1)
	}
	if e.counter != nil {
		e.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// Counts returns how many evaluations came from the model and from the fallback
func (e *Evaluator) Counts() (modelCount, fallbackCount int64) {
	return e.modelCount.Load(), e.fallbackCount.Load()
}

// ParseEvaluation decodes and validates a model response. Aspects are matched
// case-insensitively and returned in rubric order.
func ParseEvaluation(raw string) (*models.EvaluationResult, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", ErrEvaluation)
	}

	var result models.EvaluationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrEvaluation, err)
	}

	ordered, err := validateEvaluation(&result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	result.DetailedFeedback = ordered
	return &result, nil
}

// validateEvaluation checks the rubric shape: overall score in range and every
// aspect exactly once with an in-range score. The feedback comes back in
// rubric order with canonical aspect names; result is not modified.
func validateEvaluation(result *models.EvaluationResult) ([]models.AspectFeedback, error) {
	if !inScoreRange(result.OverallScore) {
		return nil, fmt.Errorf("overall score %.2f out of range", result.OverallScore)
	}
	if len(result.DetailedFeedback) != len(models.Aspects) {
		return nil, fmt.Errorf("expected %d aspects, got %d", len(models.Aspects), len(result.DetailedFeedback))
	}

	byAspect := make(map[string]models.AspectFeedback, len(result.DetailedFeedback))
	for _, f := range result.DetailedFeedback {
		key := strings.ToLower(strings.TrimSpace(f.Aspect))
		if _, dup := byAspect[key]; dup {
			return nil, fmt.Errorf("duplicate aspect %q", f.Aspect)
		}
		if !inScoreRange(f.Score) {
			return nil, fmt.Errorf("%s score %.2f out of range", f.Aspect, f.Score)
		}
		byAspect[key] = f
	}

	ordered := make([]models.AspectFeedback, 0, len(models.Aspects))
	for _, aspect := range models.Aspects {
		f, ok := byAspect[strings.ToLower(aspect)]
		if !ok {
			return nil, fmt.Errorf("missing aspect %q", aspect)
		}
		f.Aspect = aspect
		ordered = append(ordered, f)
	}
	return ordered, nil
}

func inScoreRange(score float64) bool {
	return score >= models.MinScore && score <= models.MaxScore
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
