// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// ErrorClass categorizes a provider-reported failure for the retry
// controller. The caller of Classify chooses the class; the provider clients
// return wrapped errors and do not produce ErrorClass values themselves.
type ErrorClass int

const (
	ErrTransient ErrorClass = iota
	ErrServerError
	ErrRetryableSignal
	ErrOverloaded
	ErrContextWindowExceeded
	ErrQuotaExceeded
	ErrFatal
)

// DecisionKind is the verdict a RetryController reaches for one failed
// attempt.
type DecisionKind int

const (
	DecisionRetry DecisionKind = iota
	DecisionFallback
	DecisionGiveUp
)

// Decision is the retry controller's verdict plus any data the caller needs
// to act on it.
type Decision struct {
	Kind  DecisionKind
	Delay time.Duration
}

// RetryConfig configures backoff and fallback behavior. FallbackModel is
// empty when no fallback is configured, in which case overload/quota
// signals escalate straight to GiveUp.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	FallbackModel string
	Logger        *zap.Logger
}

// DefaultRetryConfig mirrors the conservative defaults used elsewhere in the
// provider stack for exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Logger:      zap.NewNop(),
	}
}

// RetryController decides Retry/Fallback/GiveUp per failed attempt and
// tracks the attempt counter and active model reference across a single
// logical request (which may span a fallback switch).
type RetryController struct {
	cfg          RetryConfig
	attempt      int
	activeModel  string
	onFallback   func(model string)
}

// NewRetryController starts a controller for a request against the given
// primary model.
func NewRetryController(cfg RetryConfig, primaryModel string) *RetryController {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RetryController{cfg: cfg, activeModel: primaryModel}
}

// ActiveModel returns the model the next attempt should target; it changes
// after a Fallback decision.
func (c *RetryController) ActiveModel() string { return c.activeModel }

// OnFallback registers a callback invoked when the controller switches the
// active model.
func (c *RetryController) OnFallback(fn func(model string)) { c.onFallback = fn }

// Classify decides what to do about one failed attempt, given its class and
// the cause for logging. Transient-class failures are logged with the attempt
// number (and the delay when retrying); overload, quota and fatal outcomes
// log the cause only, and an unknown class gives up without logging.
func (c *RetryController) Classify(class ErrorClass, cause error) Decision {
	c.attempt++

	switch class {
	case ErrTransient, ErrServerError, ErrRetryableSignal:
		if c.attempt >= c.cfg.MaxAttempts {
			c.cfg.Logger.Warn("retry attempts exhausted", zap.Int("attempt", c.attempt), zap.Error(cause))
			return c.giveUpOrFallback(cause)
		}
		delay := c.backoffDelay()
		c.cfg.Logger.Info("retrying after transient failure",
			zap.Int("attempt", c.attempt), zap.Duration("delay", delay), zap.Error(cause))
		return Decision{Kind: DecisionRetry, Delay: delay}

	case ErrOverloaded, ErrQuotaExceeded:
		return c.giveUpOrFallback(cause)

	case ErrContextWindowExceeded, ErrFatal:
		c.cfg.Logger.Warn("non-retryable failure", zap.String("cause_class", "fatal"), zap.Error(cause))
		return Decision{Kind: DecisionGiveUp}

	default:
		return Decision{Kind: DecisionGiveUp}
	}
}

func (c *RetryController) giveUpOrFallback(cause error) Decision {
	if c.cfg.FallbackModel == "" || c.cfg.FallbackModel == c.activeModel {
		c.cfg.Logger.Warn("giving up, no fallback configured", zap.Error(cause))
		return Decision{Kind: DecisionGiveUp}
	}
	c.cfg.Logger.Info("falling back to secondary model",
		zap.String("from", c.activeModel), zap.String("to", c.cfg.FallbackModel), zap.Error(cause))
	c.activeModel = c.cfg.FallbackModel
	c.attempt = 0
	if c.onFallback != nil {
		c.onFallback(c.activeModel)
	}
	return Decision{Kind: DecisionFallback}
}

func (c *RetryController) backoffDelay() time.Duration {
	d := time.Duration(float64(c.cfg.BaseDelay) * math.Pow(2, float64(c.attempt-1)))
	if d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	return d
}

// ErrStreamIdleTimeout is returned when no stream event arrives within the
// configured idle window.
var ErrStreamIdleTimeout = errors.New("stream idle timeout")
