package validate

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/shared/types"
)

// Code classifies why an action was rejected.
type Code string

const (
	// CodeWindowUnavailable means no target is set, the target has no
	// window handle, or its bounds cannot be resolved.
	CodeWindowUnavailable Code = "window_unavailable"
	// CodeAppNotActive means the target application is not in the
	// active state.
	CodeAppNotActive Code = "app_not_active"
	// CodeOutOfBounds means a mouse coordinate falls outside the
	// target window.
	CodeOutOfBounds Code = "out_of_bounds"
)

// Result is the outcome of validating one action. Point and Bounds are
// set only for out-of-bounds rejections.
type Result struct {
	Valid  bool          `json:"valid"`
	Code   Code          `json:"code,omitempty"`
	Reason string        `json:"reason,omitempty"`
	Point  *types.Point  `json:"point,omitempty"`
	Bounds *types.Bounds `json:"bounds,omitempty"`
}

func valid() Result {
	return Result{Valid: true}
}

func windowUnavailable(reason string) Result {
	return Result{Valid: false, Code: CodeWindowUnavailable, Reason: reason}
}

func notActive(status types.ApplicationStatus) Result {
	return Result{
		Valid:  false,
		Code:   CodeAppNotActive,
		Reason: fmt.Sprintf("application not active (status %s)", status),
	}
}

func outOfBounds(p types.Point, b types.Bounds) Result {
	return Result{
		Valid:  false,
		Code:   CodeOutOfBounds,
		Reason: fmt.Sprintf("point %s outside window bounds %s", p, b),
		Point:  &p,
		Bounds: &b,
	}
}

// Validator decides whether a single action is safe to execute against
// the current target application. It holds at most one target.
type Validator struct {
	resolver platform.WindowResolver
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu     sync.Mutex
	target *types.RegisteredApplication
}

// NewValidator creates a validator resolving window geometry through
// the given resolver.
func NewValidator(resolver platform.WindowResolver, logger *logging.Logger, metrics *monitoring.Metrics) *Validator {
	return &Validator{
		resolver: resolver,
		logger:   logger.Named("validate"),
		metrics:  metrics,
	}
}

// SetTargetApplication replaces the held target.
func (v *Validator) SetTargetApplication(app types.RegisteredApplication) {
	v.mu.Lock()
	defer v.mu.Unlock()
	clone := app.Clone()
	v.target = &clone
}

// ClearTargetApplication drops the held target.
func (v *Validator) ClearTargetApplication() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.target = nil
}

// TargetApplication returns a copy of the held target, if any.
func (v *Validator) TargetApplication() (types.RegisteredApplication, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.target == nil {
		return types.RegisteredApplication{}, false
	}
	return v.target.Clone(), true
}

// ValidateAction runs the decision procedure for one action:
//
//  1. no target set -> window_unavailable
//  2. target not active -> app_not_active
//  3. keyboard actions -> valid, window handle not required
//  4. mouse actions -> require a window handle, resolve its bounds and
//     test every target point (drags test both endpoints)
//
// Synchronous and deterministic for a given target state; no retries.
func (v *Validator) ValidateAction(ctx context.Context, action types.Action) Result {
	v.mu.Lock()
	var target *types.RegisteredApplication
	if v.target != nil {
		clone := v.target.Clone()
		target = &clone
	}
	v.mu.Unlock()

	res := v.decide(ctx, target, action)
	if !res.Valid {
		v.metrics.RecordValidationFailure(string(res.Code))
		v.logger.Debug("Action rejected",
			zap.String("action", action.Describe()),
			zap.String("code", string(res.Code)),
			zap.String("reason", res.Reason))
	}
	return res
}

func (v *Validator) decide(ctx context.Context, target *types.RegisteredApplication, action types.Action) Result {
	if target == nil {
		return windowUnavailable("no target application set")
	}
	if target.Status != types.AppStatusActive {
		return notActive(target.Status)
	}
	if !action.IsMouse() {
		return valid()
	}

	if !target.HasWindow() {
		return windowUnavailable("target application has no window")
	}
	bounds, err := v.resolver.WindowBounds(ctx, target.WindowHandle)
	if err != nil {
		return windowUnavailable(fmt.Sprintf("window bounds unavailable: %v", err))
	}

	for _, p := range action.TargetPoints() {
		if !bounds.Contains(p) {
			return outOfBounds(p, bounds)
		}
	}
	return valid()
}
