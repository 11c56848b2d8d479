package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/plant"
)

const (
	DefaultDataDir = "runs"
	DefaultWebAddr = ":8480"
)

type Config struct {
	// Profile selects the gain profile: "physical" or "simulation".
	Profile string `yaml:"profile"`

	// Gains override individual profile values when non-zero.
	Gains GainsConfig `yaml:"gains"`

	Plant plant.Params `yaml:"plant"`

	// StartAngleDeg is the joint angle at simulation start, measured up
	// from the low travel limit.
	StartAngleDeg float64 `yaml:"start_angle_deg"`

	DataDir string `yaml:"data_dir"`

	MQTT MQTTConfig `yaml:"mqtt"`
	Web  WebConfig  `yaml:"web"`
	CAN  CANConfig  `yaml:"can"`
	Bus  BusConfig  `yaml:"bus"`
}

type GainsConfig struct {
	Kp          float64 `yaml:"kp"`
	Ki          float64 `yaml:"ki"`
	Kd          float64 `yaml:"kd"`
	MaxErrorSum float64 `yaml:"max_error_sum"`
	DeadbandDeg float64 `yaml:"deadband_deg"`
}

// MQTTConfig points telemetry at a broker. An empty broker disables
// MQTT publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// CANConfig names the SocketCAN interface for the frame bridge.
type CANConfig struct {
	Interface string `yaml:"interface"`
}

// BusConfig names the serial bus-servo port for hardware drives.
type BusConfig struct {
	Port    string `yaml:"port"`
	ServoID int    `yaml:"servo_id"`
}

func DefaultConfig() *Config {
	return &Config{
		Profile:       "physical",
		Plant:         plant.DefaultParams(),
		StartAngleDeg: 10.0,
		DataDir:       DefaultDataDir,
		MQTT: MQTTConfig{
			ClientID: "liftkit",
			Topic:    "liftkit/das",
		},
		Web: WebConfig{Addr: DefaultWebAddr},
		CAN: CANConfig{Interface: "can0"},
		Bus: BusConfig{Port: "/dev/ttyUSB0", ServoID: 1},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LiftProfile resolves the named gain profile with any overrides
// applied.
func (c *Config) LiftProfile() lift.Profile {
	p := lift.PhysicalProfile()
	if c.Profile == "simulation" {
		p = lift.SimulationProfile()
	}
	if c.Gains.Kp != 0 {
		p.Kp = c.Gains.Kp
	}
	if c.Gains.Ki != 0 {
		p.Ki = c.Gains.Ki
	}
	if c.Gains.Kd != 0 {
		p.Kd = c.Gains.Kd
	}
	if c.Gains.MaxErrorSum != 0 {
		p.MaxErrorSum = c.Gains.MaxErrorSum
	}
	if c.Gains.DeadbandDeg != 0 {
		p.EncoderDeadbandRad = lift.DegToRad(c.Gains.DeadbandDeg)
	}
	return p
}

// StartAngleRad converts the configured start offset to an absolute
// joint angle within the travel limits.
func (c *Config) StartAngleRad() float64 {
	a := lift.MinAngleRad + lift.DegToRad(c.StartAngleDeg)
	if a < lift.MinAngleRad {
		a = lift.MinAngleRad
	}
	if a > lift.MaxAngleRad {
		a = lift.MaxAngleRad
	}
	return a
}
