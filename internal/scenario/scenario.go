// Package scenario runs scripted control sequences against the
// simulated lift joint and reduces them to samples, events and
// metrics.
package scenario

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted simulation sequence.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Duration    float64 `yaml:"duration"`
	Steps       []Step  `yaml:"steps"`
}

// Step fires one action at a point in scenario time. Only the fields
// its action reads are meaningful.
type Step struct {
	At     float64 `yaml:"at"`
	Action string  `yaml:"action"`

	HeightMM float64 `yaml:"height_mm"`
	AngleDeg float64 `yaml:"angle_deg"`
	Speed    float64 `yaml:"speed"`
	Accel    float64 `yaml:"accel"`

	// MoveDuration requests a fixed-duration profile when positive.
	MoveDuration float64 `yaml:"move_duration"`

	// TorqueNm is the external torque for a disturb action.
	TorqueNm float64 `yaml:"torque_nm"`

	// On is the new value for flag actions (charger, held, cliff,
	// carry, encoder_invalid) and auto re-enable for disable.
	On bool `yaml:"on"`

	Kp          float64 `yaml:"kp"`
	Ki          float64 `yaml:"ki"`
	Kd          float64 `yaml:"kd"`
	MaxErrorSum float64 `yaml:"max_error_sum"`
}

var knownActions = map[string]bool{
	"calibrate":         true,
	"clear_calibration": true,
	"set_height":        true,
	"set_angle":         true,
	"set_velocity":      true,
	"stop":              true,
	"enable":            true,
	"disable":           true,
	"brace":             true,
	"unbrace":           true,
	"check_load":        true,
	"disturb":           true,
	"charger":           true,
	"held":              true,
	"cliff":             true,
	"carry":             true,
	"encoder_invalid":   true,
	"set_gains":         true,
}

// Validate checks the scenario is runnable.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("scenario %s: duration must be positive", s.Name)
	}
	for i, step := range s.Steps {
		if !knownActions[step.Action] {
			return fmt.Errorf("scenario %s step %d: unknown action %q", s.Name, i, step.Action)
		}
		if step.At < 0 || step.At > s.Duration {
			return fmt.Errorf("scenario %s step %d: at=%.3f outside run duration", s.Name, i, step.At)
		}
	}
	return nil
}

// sortedSteps returns the steps ordered by firing time.
func (s *Scenario) sortedSteps() []Step {
	steps := append([]Step(nil), s.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return steps
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes a scenario to a YAML file.
func Save(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
