// Package llm implements LLMAdapter (C3): the external I/O boundary
// for chat-completion reasoning calls, with a payload sanitizer helper and a
// distinguished RegionalBlock error kind for HTTP 451 responses.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AbhayRathi/AlphaWEEX/internal/apperrors"
)

// Completion is the structured result of a chat-completion call.
type Completion struct {
	Content string
	Meta    map[string]any
}

// Transport is the live HTTP boundary. A real implementation posts to
// a DeepSeek-compatible chat-completions endpoint; StatusCode lets the
// Adapter translate 451 into RegionalBlock without parsing error text.
type Transport interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (Completion, int, error)
}

// sensitiveKeys are the keys Sanitize strips.
var sensitiveKeys = map[string]struct{}{
	"server_id":   {},
	"instance_id": {},
	"internal_ip": {},
	"hostname":    {},
}

// Sanitize returns a copy of payload with sensitive keys removed at
// every nesting level. Complete does not call it: it sends its system
// and user strings as given.
func Sanitize(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, blocked := sensitiveKeys[k]; blocked {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Sanitize(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Adapter wraps a Transport with a circuit breaker, rate limiting, and
// the 451-to-RegionalBlock translation. One attempt per call; retries
// are the caller's responsibility per the contract.
type Adapter struct {
	transport Transport
	log       zerolog.Logger
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
}

func New(transport Transport, log zerolog.Logger) *Adapter {
	return &Adapter{
		transport: transport,
		log:       log.With().Str("component", "llm_adapter").Logger(),
		limiter:   rate.NewLimiter(2, 2),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "llm_adapter",
			Interval: 60 * time.Second,
			Timeout:  60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Complete issues one chat-completion call bounded by the given timeout.
func (a *Adapter) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int, timeout time.Duration) (Completion, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Completion{}, apperrors.Transient("llm.complete", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	correlationID := uuid.NewString()
	result, err := a.breaker.Execute(func() (any, error) {
		completion, status, err := a.transport.Complete(callCtx, system, user, temperature, maxTokens)
		if status == 451 {
			return nil, apperrors.RegionalBlock("llm.complete", errors.New("regional block (451)"))
		}
		if err != nil {
			return nil, apperrors.Transient("llm.complete", err)
		}
		return completion, nil
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			a.log.Warn().Str("correlation_id", correlationID).Err(err).Msg("llm completion failed")
			return Completion{}, err
		}
		return Completion{}, apperrors.Transient("llm.complete", err)
	}

	return result.(Completion), nil
}
