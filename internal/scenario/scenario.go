package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/replaykit/replayd/internal/shared/types"
)

// Duration is a time.Duration that marshals as a Go duration string
// ("250ms", "2s") in every scenario format.
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler for YAML and TOML.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML and TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string like \"250ms\": %w", err)
	}
	return d.UnmarshalText([]byte(raw))
}

// Step is one recorded action with its pre-injection delay.
type Step struct {
	Label  string       `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Action types.Action `json:"action" yaml:"action" toml:"action"`
	Delay  Duration     `json:"delay,omitempty" yaml:"delay,omitempty" toml:"delay,omitempty"`
}

// Scenario is a recorded action sequence replayable against a target
// application.
type Scenario struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	AppID string `json:"app_id,omitempty" yaml:"app_id,omitempty" toml:"app_id,omitempty"`
	Steps []Step `json:"steps" yaml:"steps" toml:"steps"`
}

// Validate checks the scenario is structurally replayable. It does not
// check screen bounds; the action validator owns that at injection
// time.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario id is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s has no steps", s.ID)
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Delay < 0 {
		return fmt.Errorf("negative delay %s", step.Delay)
	}
	switch step.Action.Type {
	case types.ActionMouseClick, types.ActionMouseMove, types.ActionMouseDrag:
		return nil
	case types.ActionKeyboardInput:
		if step.Action.Text == "" {
			return fmt.Errorf("keyboard_input requires text")
		}
		return nil
	case types.ActionKeyPress:
		if step.Action.Key == "" {
			return fmt.Errorf("key_press requires a key")
		}
		return nil
	case "":
		return fmt.Errorf("action type is required")
	}
	return fmt.Errorf("unknown action type %q", step.Action.Type)
}

// EstimatedDuration sums the step delays. Injection time is excluded;
// the estimate is a lower bound.
func (s *Scenario) EstimatedDuration() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.Delay.Std()
	}
	return total
}
