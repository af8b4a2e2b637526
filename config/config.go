// Package config defines the configuration tree consumed by the
// motion-control core (spec §6) and loads it with viper from a YAML file
// plus KUKAJ_-prefixed environment overrides, the way the teacher's CLI
// tooling layers config sources.
package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// JointLimits mirrors limits.Limits but lives in config so a program can be
// loaded without importing the limits package directly.
type JointLimits struct {
	PosMin    float64 `mapstructure:"pos_min"`
	PosMax    float64 `mapstructure:"pos_max"`
	VelMax    float64 `mapstructure:"vel_max"`
	AccMax    float64 `mapstructure:"acc_max"`
	TorqueMax float64 `mapstructure:"torque_max"`
	JerkMax   float64 `mapstructure:"jerk_max"`
}

// DHJoint is one row of the DH parameter table.
type DHJoint struct {
	A         float64 `mapstructure:"a"`
	D         float64 `mapstructure:"d"`
	Alpha     float64 `mapstructure:"alpha"`
	ThetaOff  float64 `mapstructure:"theta_offset"`
}

// PIDGains is one joint's PID+feedforward gain set.
type PIDGains struct {
	Kp            float64 `mapstructure:"kp"`
	Ki            float64 `mapstructure:"ki"`
	Kd            float64 `mapstructure:"kd"`
	KffV          float64 `mapstructure:"kff_v"`
	KffA          float64 `mapstructure:"kff_a"`
	IntegralLimit float64 `mapstructure:"integral_limit"`
	OutputLimit   float64 `mapstructure:"output_limit"`
	Inertia       float64 `mapstructure:"inertia"`
	CoulombFric   float64 `mapstructure:"coulomb_friction"`
	ViscousFric   float64 `mapstructure:"viscous_friction"`
}

// AABB is an axis-aligned bounding box, min/max each a 3-vector.
type AABB struct {
	Min [3]float64 `mapstructure:"min"`
	Max [3]float64 `mapstructure:"max"`
}

// Config is the full configuration tree named in spec §6.
type Config struct {
	LoopFrequencyHz    float64       `mapstructure:"loop_frequency_hz"`
	WatchdogTimeoutMs  float64       `mapstructure:"watchdog_timeout_ms"`
	EnableFeedforward  bool          `mapstructure:"enable_feedforward"`
	SafetyCheckEnabled bool          `mapstructure:"safety_check_enabled"`
	Joints             []PIDGains    `mapstructure:"joints"`
	JointLimits        []JointLimits `mapstructure:"joint_limits"`
	DHTable            []DHJoint     `mapstructure:"dh_table"`
	Workspace          AABB          `mapstructure:"workspace"`
	BusInterface       string        `mapstructure:"bus_interface"`
	GPIOSimulation     bool          `mapstructure:"gpio_simulation"`
}

// NumJoints returns the configured joint count, derived from the gains
// table length rather than a hard-coded constant.
func (c *Config) NumJoints() int {
	return len(c.Joints)
}

// Load reads a YAML config file at path (if non-empty) and layers
// KUKAJ_-prefixed environment variables on top, matching the teacher's
// viper-based CLI config pattern.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KUKAJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc()
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = decodeHook
	}); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loop_frequency_hz", 1000.0)
	v.SetDefault("watchdog_timeout_ms", 50.0)
	v.SetDefault("enable_feedforward", true)
	v.SetDefault("safety_check_enabled", true)
	v.SetDefault("gpio_simulation", true)
	v.SetDefault("bus_interface", "eth0")
}

// Validate checks the shape invariants the executor depends on: every
// per-joint table must share the same length as the DH table.
func (c *Config) Validate() error {
	n := len(c.DHTable)
	if n == 0 {
		return errors.New("config: dh_table must not be empty")
	}
	if len(c.Joints) != n {
		return errors.Errorf("config: joints has %d entries, want %d (len(dh_table))", len(c.Joints), n)
	}
	if len(c.JointLimits) != n {
		return errors.Errorf("config: joint_limits has %d entries, want %d (len(dh_table))", len(c.JointLimits), n)
	}
	if c.LoopFrequencyHz <= 0 {
		return errors.New("config: loop_frequency_hz must be positive")
	}
	return nil
}
