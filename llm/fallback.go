package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/framework"
)

// ErrModelUnavailable is returned when neither the primary model nor the
// offline generator produced text.
var ErrModelUnavailable = errors.New("language model unavailable")

const (
	// DefaultTimeout bounds a single primary call.
	DefaultTimeout = 30 * time.Second
	// DefaultCooldown is how long a failed primary is skipped before it is
	// tried again.
	DefaultCooldown = time.Minute
)

// FallbackModel calls Primary under a timeout and substitutes Offline when
// the call fails or returns nothing.
type FallbackModel struct {
	Primary framework.LanguageModel
	Offline framework.LanguageModel
	Timeout time.Duration
	// Cooldown skips Primary for this long after a failure. Zero retries
	// Primary on every call.
	Cooldown time.Duration
	Logger   *zap.Logger

	now     func() time.Time
	retryAt atomic.Int64
}

// NewFallbackModel wraps primary with the deterministic offline generator.
// A nil primary runs offline only.
func NewFallbackModel(primary framework.LanguageModel, timeout time.Duration, logger *zap.Logger) *FallbackModel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FallbackModel{
		Primary:  primary,
		Offline:  OfflineModel{},
		Timeout:  timeout,
		Cooldown: DefaultCooldown,
		Logger:   logger,
	}
}

// Degraded reports whether the model is answering from the offline generator.
func (f *FallbackModel) Degraded() bool {
	return f.Primary == nil || f.clock().UnixNano() < f.retryAt.Load()
}

func (f *FallbackModel) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

// Generate implements framework.LanguageModel.
func (f *FallbackModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	logger := framework.LoggerOrNop(f.Logger)
	var primaryErr error
	if !f.Degraded() {
		resp, err := f.callPrimary(ctx, prompt, options)
		if err == nil {
			return resp, nil
		}
		primaryErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if f.Cooldown > 0 {
			f.retryAt.Store(f.clock().Add(f.Cooldown).UnixNano())
		}
		logger.Warn("language model failed, using offline generator",
			zap.Error(err), zap.Duration("retry_in", f.Cooldown))
	}
	if f.Offline == nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, primaryErr)
	}
	resp, err := f.Offline.Generate(ctx, prompt, options)
	if err != nil {
		return nil, fmt.Errorf("%w: offline: %v", ErrModelUnavailable, err)
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]interface{}{}
	}
	resp.Metadata["fallback"] = true
	if primaryErr != nil {
		resp.Metadata["primary_error"] = primaryErr.Error()
	}
	return resp, nil
}

func (f *FallbackModel) callPrimary(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	resp, err := f.Primary.Generate(callCtx, prompt, options)
	if err != nil {
		return nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, errors.New("empty response")
	}
	return resp, nil
}
