// Package config loads the daemon configuration from fluxcap.yaml and
// FLUXCAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/gpio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

// Config is the full daemon configuration.
type Config struct {
	LogLevel string      `mapstructure:"log_level"`
	DBPath   string      `mapstructure:"db_path"`
	HTTPAddr string      `mapstructure:"http_addr"`
	Pins     gpio.Pins   `mapstructure:"pins"`
	PWM      PWMConfig   `mapstructure:"pwm"`
	MQTT     MQTTConfig  `mapstructure:"mqtt"`
	BTTFN    BTTFNConfig `mapstructure:"bttfn"`
	Prop     PropConfig  `mapstructure:"prop"`
	IR       IRConfig    `mapstructure:"ir"`
}

// PWMConfig selects the sysfs PWM channels of the two light channels.
// A negative channel disables that light.
type PWMConfig struct {
	Chip   string        `mapstructure:"chip"`
	Center int           `mapstructure:"center"`
	Box    int           `mapstructure:"box"`
	Period time.Duration `mapstructure:"period"`
}

// MQTTConfig holds broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker        string `mapstructure:"broker"`
	Auth          string `mapstructure:"auth"` // "user:password"
	ClientID      string `mapstructure:"client_id"`
	PublishStatus bool   `mapstructure:"publish_status"`
}

// BTTFNConfig holds network settings. An empty host disables the client.
type BTTFNConfig struct {
	Host      string `mapstructure:"host"`
	LocalPort int    `mapstructure:"local_port"`
	Hostname  string `mapstructure:"hostname"`
}

// PropConfig holds behaviour options.
type PropConfig struct {
	PlaySounds   bool          `mapstructure:"play_tt_sounds"`
	Wired        bool          `mapstructure:"tcd_wired"`
	UseGPSSpeed  bool          `mapstructure:"use_gps_speed"`
	FollowNight  bool          `mapstructure:"follow_night_mode"`
	FollowPower  bool          `mapstructure:"follow_fake_power"`
	ScreenSaver  time.Duration `mapstructure:"screen_saver"` // 0 disables
	DefaultSpeed int           `mapstructure:"default_speed"`
}

// IRConfig holds remote control options.
type IRConfig struct {
	DisableDefault bool `mapstructure:"disable_default"`
	// UserCodes are 17 hex fingerprints in key order (0-9 * # up down
	// left right OK); empty entries are unassigned.
	UserCodes []string `mapstructure:"user_codes"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: logger.InfoLevel,
		DBPath:   "fluxcap.db",
		HTTPAddr: ":80",
		Pins:     gpio.DefaultPins(),
		PWM: PWMConfig{
			Chip:   "pwmchip0",
			Center: 0,
			Box:    1,
			Period: gpio.DefaultPWMPeriod,
		},
		MQTT: MQTTConfig{PublishStatus: true},
		BTTFN: BTTFNConfig{
			LocalPort: 0,
			Hostname:  "fluxcap",
		},
		Prop: PropConfig{
			PlaySounds:   true,
			DefaultSpeed: 20,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("pins.chip", d.Pins.Chip)
	v.SetDefault("pins.tt", d.Pins.TT)
	v.SetDefault("pins.ir", d.Pins.IR)
	v.SetDefault("pins.feedback", d.Pins.Feedback)
	v.SetDefault("pins.shift_data", d.Pins.ShiftData)
	v.SetDefault("pins.shift_clock", d.Pins.ShiftClock)
	v.SetDefault("pins.shift_latch", d.Pins.ShiftLatch)
	v.SetDefault("pwm.chip", d.PWM.Chip)
	v.SetDefault("pwm.center", d.PWM.Center)
	v.SetDefault("pwm.box", d.PWM.Box)
	v.SetDefault("pwm.period", d.PWM.Period)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.auth", d.MQTT.Auth)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.publish_status", d.MQTT.PublishStatus)
	v.SetDefault("bttfn.host", d.BTTFN.Host)
	v.SetDefault("bttfn.local_port", d.BTTFN.LocalPort)
	v.SetDefault("bttfn.hostname", d.BTTFN.Hostname)
	v.SetDefault("prop.play_tt_sounds", d.Prop.PlaySounds)
	v.SetDefault("prop.tcd_wired", d.Prop.Wired)
	v.SetDefault("prop.use_gps_speed", d.Prop.UseGPSSpeed)
	v.SetDefault("prop.follow_night_mode", d.Prop.FollowNight)
	v.SetDefault("prop.follow_fake_power", d.Prop.FollowPower)
	v.SetDefault("prop.screen_saver", d.Prop.ScreenSaver)
	v.SetDefault("prop.default_speed", d.Prop.DefaultSpeed)
	v.SetDefault("ir.disable_default", d.IR.DisableDefault)
	v.SetDefault("ir.user_codes", []string{})
}

// Load reads the configuration. If path is empty, fluxcap.yaml is looked
// up in the working directory and /etc/fluxcap; a missing file is not an
// error. Environment variables override the file, e.g.
// FLUXCAP_MQTT_BROKER for mqtt.broker.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLUXCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fluxcap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fluxcap")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Prop.DefaultSpeed < 1 || c.Prop.DefaultSpeed > 500 {
		errs = append(errs, fmt.Errorf("prop.default_speed %d out of range 1..500", c.Prop.DefaultSpeed))
	}
	if c.Prop.ScreenSaver < 0 {
		errs = append(errs, fmt.Errorf("prop.screen_saver must not be negative"))
	}
	if c.BTTFN.LocalPort < 0 || c.BTTFN.LocalPort > 65535 {
		errs = append(errs, fmt.Errorf("bttfn.local_port %d out of range", c.BTTFN.LocalPort))
	}
	if _, _, err := c.IR.Codes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Codes parses UserCodes. ok is false if none are configured.
func (c IRConfig) Codes() (codes ir.Codes, ok bool, err error) {
	if len(c.UserCodes) == 0 {
		return codes, false, nil
	}
	if len(c.UserCodes) != ir.NumKeys {
		return codes, false, fmt.Errorf("ir.user_codes: want %d entries, got %d", ir.NumKeys, len(c.UserCodes))
	}
	for i, s := range c.UserCodes {
		s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
		if s == "" {
			continue
		}
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return codes, false, fmt.Errorf("ir.user_codes[%d] (%s): %w", i, ir.Key(i), err)
		}
		codes[i] = uint32(v)
	}
	return codes, true, nil
}
