// Package recommend scores a composite try-on image with an external model.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/models"
)

var (
	ErrMalformedResponse = errors.New("malformed recommendation response")
	ErrMissingAPIKey     = errors.New("GEMINI_API_KEY is not set")
)

// FallbackFeedback is shown whenever the model could not produce a usable answer.
const FallbackFeedback = "This look is classic! The AI processing had a hiccup, but you look great in this style."

// Evaluator rates a PNG composite for a user of the given gender.
type Evaluator interface {
	Evaluate(ctx context.Context, png []byte, gender models.Gender) (models.AIRecommendation, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, png []byte, gender models.Gender) (models.AIRecommendation, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, png []byte, gender models.Gender) (models.AIRecommendation, error) {
	return f(ctx, png, gender)
}

// Unavailable is an Evaluator that always fails with Err.
func Unavailable(err error) Evaluator {
	return EvaluatorFunc(func(context.Context, []byte, models.Gender) (models.AIRecommendation, error) {
		return models.AIRecommendation{}, err
	})
}

func Fallback() models.AIRecommendation {
	return models.AIRecommendation{Score: 80, Feedback: FallbackFeedback}
}

// Parse validates a model answer of the form {"score": n, "feedback": "..."}.
// The score is clamped to [0,100].
func Parse(text string) (models.AIRecommendation, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var raw struct {
		Score    *float64 `json:"score"`
		Feedback *string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return models.AIRecommendation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Score == nil || raw.Feedback == nil {
		return models.AIRecommendation{}, fmt.Errorf("%w: score and feedback are required", ErrMalformedResponse)
	}
	if math.IsNaN(*raw.Score) || math.IsInf(*raw.Score, 0) {
		return models.AIRecommendation{}, fmt.Errorf("%w: score is not finite", ErrMalformedResponse)
	}
	feedback := strings.TrimSpace(*raw.Feedback)
	if feedback == "" {
		return models.AIRecommendation{}, fmt.Errorf("%w: empty feedback", ErrMalformedResponse)
	}

	return models.AIRecommendation{
		Score:    math.Min(100, math.Max(0, *raw.Score)),
		Feedback: feedback,
	}, nil
}

type fallback struct {
	next    Evaluator
	timeout time.Duration
	logger  *zap.Logger
}

// WithFallback bounds ev by timeout and replaces every failure with Fallback().
// The returned Evaluator never returns an error.
func WithFallback(ev Evaluator, timeout time.Duration, logger *zap.Logger) Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallback{next: ev, timeout: timeout, logger: logger}
}

func (f *fallback) Evaluate(ctx context.Context, png []byte, gender models.Gender) (models.AIRecommendation, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	type outcome struct {
		rec models.AIRecommendation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := f.next.Evaluate(ctx, png, gender)
		done <- outcome{rec, err}
	}()

	var err error
	select {
	case o := <-done:
		if o.err == nil {
			return o.rec, nil
		}
		err = o.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	f.logger.Warn("recommendation unavailable, using fallback", zap.Error(err))
	return Fallback(), nil
}
