package scenario

import (
	"sort"

	"github.com/embq/liftkit/internal/lift"
)

// Presets are the stock scenarios exercised by the CLI and web UI.
var Presets = map[string]*Scenario{
	"startup": {
		Name:        "startup",
		Description: "Boot calibration followed by a dock-height move",
		Duration:    6,
		Steps: []Step{
			{At: 0, Action: "calibrate"},
			{At: 2.5, Action: "set_height", HeightMM: lift.HeightHighDockMM},
		},
	},
	"carry": {
		Name:        "carry",
		Description: "Pick up a load, raise it to carry height and verify it with a load check",
		Duration:    8,
		Steps: []Step{
			{At: 0, Action: "calibrate"},
			{At: 2.5, Action: "carry", On: true},
			{At: 2.6, Action: "set_height", HeightMM: lift.HeightCarryMM},
			{At: 5.5, Action: "check_load"},
		},
	},
	"tamper": {
		Name:        "tamper",
		Description: "A hand lifts the arm during boot calibration, forcing a restart",
		Duration:    8,
		Steps: []Step{
			{At: 0, Action: "calibrate"},
			{At: 0.3, Action: "disturb", TorqueNm: 0.45},
			{At: 1.3, Action: "disturb", TorqueNm: 0},
		},
	},
	"charger": {
		Name:        "charger",
		Description: "Docking disables the motor, undocking restores it",
		Duration:    6,
		Steps: []Step{
			{At: 0, Action: "calibrate"},
			{At: 2, Action: "enable"},
			{At: 2.5, Action: "charger", On: true},
			{At: 4, Action: "charger", On: false},
		},
	},
	"brace": {
		Name:        "brace",
		Description: "An impact mid-move braces the lift, then control recovers",
		Duration:    8,
		Steps: []Step{
			{At: 0, Action: "calibrate"},
			{At: 2.5, Action: "set_height", HeightMM: lift.HeightCarryMM},
			{At: 4, Action: "brace"},
			{At: 5, Action: "unbrace"},
		},
	},
	"burnout": {
		Name:        "burnout",
		Description: "A jammed joint trips burnout protection into recalibration",
		Duration:    10,
		Steps: []Step{
			{At: 0, Action: "calibrate"},
			{At: 2.4, Action: "disturb", TorqueNm: -0.6},
			{At: 2.5, Action: "set_height", HeightMM: lift.HeightCarryMM},
			{At: 6, Action: "disturb", TorqueNm: 0},
		},
	},
}

func GetPreset(name string) *Scenario {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
