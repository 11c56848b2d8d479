package config

import "sort"

// Presets are ready-made configurations for the common bench setups.
var Presets = map[string]*Config{
	"physical":   DefaultConfig(),
	"simulation": simulationPreset(),
	"heavy-load": heavyLoadPreset(),
	"worn-motor": wornMotorPreset(),
}

func simulationPreset() *Config {
	cfg := DefaultConfig()
	cfg.Profile = "simulation"
	return cfg
}

// heavyLoadPreset models a lift permanently carrying near its payload
// limit: more gravity load and a start near the carry height.
func heavyLoadPreset() *Config {
	cfg := DefaultConfig()
	cfg.Plant.GravityTorqueNm = 0.05
	cfg.Plant.CarryTorqueNm = 0.08
	cfg.StartAngleDeg = 40.0
	return cfg
}

// wornMotorPreset models a tired gearbox: weaker stall torque and more
// friction, the regime where burnout protection starts to matter.
func wornMotorPreset() *Config {
	cfg := DefaultConfig()
	cfg.Plant.MotorTorqueNm = 0.3
	cfg.Plant.StictionNm = 0.06
	cfg.Plant.ViscousNmPerRadPerSec = 0.04
	return cfg
}

func GetPreset(name string) *Config {
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
