// Package config loads the cdcboot TOML configuration file.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mame82/cdcboot/target"
	"github.com/pkg/errors"
)

// Device configures the simulated bootloader device.
type Device struct {
	Target       string
	Listen       string
	FlashFile    string
	SettleBefore time.Duration
	SettleAfter  time.Duration
	Metrics      string
}

// Host configures how the host tool reaches the device. At most one of Port,
// Address or a USB VID/PID pair is used, in that order.
type Host struct {
	Port    string
	Baud    int
	Address string
	USBVID  uint16
	USBPID  uint16
	Timeout time.Duration
}

type Log struct {
	Level string
	JSON  bool
}

type Config struct {
	Device Device
	Host   Host
	Log    Log
}

func Default() Config {
	return Config{
		Device: Device{
			Target:       target.DefaultName,
			Listen:       "127.0.0.1:7373",
			SettleBefore: time.Second,
			SettleAfter:  2 * time.Second,
		},
		Host: Host{
			Baud:    115200,
			Timeout: 5 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
	}
}

type fileDevice struct {
	Target       string `toml:"target"`
	Listen       string `toml:"listen"`
	FlashFile    string `toml:"flash_file"`
	SettleBefore string `toml:"settle_before"`
	SettleAfter  string `toml:"settle_after"`
	Metrics      string `toml:"metrics"`
}

type fileHost struct {
	Port    string `toml:"port"`
	Baud    int    `toml:"baud"`
	Address string `toml:"address"`
	USBVID  int    `toml:"usb_vid"`
	USBPID  int    `toml:"usb_pid"`
	Timeout string `toml:"timeout"`
}

type fileLog struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

type fileConfig struct {
	Device fileDevice `toml:"device"`
	Host   fileHost   `toml:"host"`
	Log    fileLog    `toml:"log"`
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("load config: unknown key %s", undecoded[0])
	}

	str := func(key, v string, dst *string) {
		if meta.IsDefined(splitKey(key)...) {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key, v string, dst *time.Duration) error {
		if !meta.IsDefined(splitKey(key)...) {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "parse %s", key)
		}
		*dst = d
		return nil
	}

	str("device.target", raw.Device.Target, &cfg.Device.Target)
	str("device.listen", raw.Device.Listen, &cfg.Device.Listen)
	str("device.flash_file", raw.Device.FlashFile, &cfg.Device.FlashFile)
	str("device.metrics", raw.Device.Metrics, &cfg.Device.Metrics)
	if err := dur("device.settle_before", raw.Device.SettleBefore, &cfg.Device.SettleBefore); err != nil {
		return Config{}, err
	}
	if err := dur("device.settle_after", raw.Device.SettleAfter, &cfg.Device.SettleAfter); err != nil {
		return Config{}, err
	}

	str("host.port", raw.Host.Port, &cfg.Host.Port)
	str("host.address", raw.Host.Address, &cfg.Host.Address)
	if meta.IsDefined("host", "baud") {
		cfg.Host.Baud = raw.Host.Baud
	}
	if meta.IsDefined("host", "usb_vid") {
		if raw.Host.USBVID < 0 || raw.Host.USBVID > 0xffff {
			return Config{}, errors.Errorf("host.usb_vid %#x out of range", raw.Host.USBVID)
		}
		cfg.Host.USBVID = uint16(raw.Host.USBVID)
	}
	if meta.IsDefined("host", "usb_pid") {
		if raw.Host.USBPID < 0 || raw.Host.USBPID > 0xffff {
			return Config{}, errors.Errorf("host.usb_pid %#x out of range", raw.Host.USBPID)
		}
		cfg.Host.USBPID = uint16(raw.Host.USBPID)
	}
	if err := dur("host.timeout", raw.Host.Timeout, &cfg.Host.Timeout); err != nil {
		return Config{}, err
	}

	str("log.level", raw.Log.Level, &cfg.Log.Level)
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the loader cannot check on its own.
func (c Config) Validate() error {
	if target.ByName(c.Device.Target) == nil {
		return errors.Errorf("unknown target %q", c.Device.Target)
	}
	if c.Device.SettleBefore < 0 || c.Device.SettleAfter < 0 {
		return errors.New("settle delays cannot be negative")
	}
	if c.Host.Timeout <= 0 {
		return errors.New("host timeout has to be positive")
	}
	if c.Host.Baud <= 0 {
		return errors.Errorf("invalid baud rate %d", c.Host.Baud)
	}
	if (c.Host.USBVID == 0) != (c.Host.USBPID == 0) {
		return errors.New("usb_vid and usb_pid have to be set together")
	}
	return nil
}

func splitKey(key string) []string {
	return strings.Split(key, ".")
}
