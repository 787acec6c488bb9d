// Package ratelimit provides per-tool token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited indicates a tool call rejected by its limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// Tool names with a default limit.
const (
	ToolSimulate  = "macrosim_simulate"
	ToolScenarios = "macrosim_scenarios"
	ToolRuns      = "macrosim_runs"
)

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*rate.Limiter

// PerMinute builds a limiter refilling n tokens a minute, holding at most burst.
func PerMinute(n float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(n/60.0), burst)
}

// NewToolLimiters creates the default set of per-tool rate limiters.
// Simulation is CPU bound, so it gets the tightest budget.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolSimulate:  PerMinute(10, 3),
		ToolScenarios: PerMinute(60, 10),
		ToolRuns:      PerMinute(60, 10),
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrRateLimited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	return CheckLimitAt(limiters, toolName, time.Now())
}

// CheckLimitAt is CheckLimit with an explicit clock reading.
func CheckLimitAt(limiters ToolLimiters, toolName string, now time.Time) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.AllowN(now, 1) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}
	return nil
}
