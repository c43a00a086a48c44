// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientErrorRetriesWithBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	c := NewRetryController(cfg, "primary")

	d1 := c.Classify(ErrTransient, errors.New("timeout"))
	require.Equal(t, DecisionRetry, d1.Kind)
	assert.Equal(t, 10*time.Millisecond, d1.Delay)

	d2 := c.Classify(ErrTransient, errors.New("timeout"))
	assert.Equal(t, 20*time.Millisecond, d2.Delay)
}

func TestTransientExhaustionWithoutFallbackGivesUp(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 2
	c := NewRetryController(cfg, "primary")

	c.Classify(ErrTransient, errors.New("x"))
	d := c.Classify(ErrTransient, errors.New("x"))
	assert.Equal(t, DecisionGiveUp, d.Kind)
}

func TestOverloadEscalatesToFallbackWhenConfigured(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.FallbackModel = "fallback-model"
	c := NewRetryController(cfg, "primary")

	var switchedTo string
	c.OnFallback(func(model string) { switchedTo = model })

	d := c.Classify(ErrOverloaded, errors.New("overloaded"))
	assert.Equal(t, DecisionFallback, d.Kind)
	assert.Equal(t, "fallback-model", c.ActiveModel())
	assert.Equal(t, "fallback-model", switchedTo)
}

func TestOverloadWithoutFallbackGivesUp(t *testing.T) {
	c := NewRetryController(DefaultRetryConfig(), "primary")
	d := c.Classify(ErrQuotaExceeded, errors.New("quota"))
	assert.Equal(t, DecisionGiveUp, d.Kind)
	assert.Equal(t, "primary", c.ActiveModel())
}

func TestContextWindowExceededNeverRetries(t *testing.T) {
	c := NewRetryController(DefaultRetryConfig(), "primary")
	d := c.Classify(ErrContextWindowExceeded, errors.New("too long"))
	assert.Equal(t, DecisionGiveUp, d.Kind)
}
