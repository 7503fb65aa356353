package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mame82/cdcboot/target"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "config")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "cdcboot.toml")
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
[device]
target = "at90usb1286"
flash_file = " flash.bin "
settle_after = "250ms"

[host]
usb_vid = 0x16d0
usb_pid = 0x0e6e
timeout = "2s"

[log]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Device.Target != "at90usb1286" {
		t.Fatalf("unexpected target: %q", cfg.Device.Target)
	}
	if cfg.Device.FlashFile != "flash.bin" {
		t.Fatalf("unexpected flash file: %q", cfg.Device.FlashFile)
	}
	if cfg.Device.SettleBefore != time.Second {
		t.Fatalf("settle_before lost its default: %v", cfg.Device.SettleBefore)
	}
	if cfg.Device.SettleAfter != 250*time.Millisecond {
		t.Fatalf("unexpected settle_after: %v", cfg.Device.SettleAfter)
	}
	if cfg.Device.Listen != Default().Device.Listen {
		t.Fatalf("unexpected listen: %q", cfg.Device.Listen)
	}
	if cfg.Host.USBVID != 0x16d0 || cfg.Host.USBPID != 0x0e6e {
		t.Fatalf("unexpected usb id: %04x:%04x", cfg.Host.USBVID, cfg.Host.USBPID)
	}
	if cfg.Host.Timeout != 2*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Host.Timeout)
	}
	if cfg.Host.Baud != 115200 {
		t.Fatalf("unexpected baud: %d", cfg.Host.Baud)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Log.Level)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
	if target.ByName(Default().Device.Target) == nil {
		t.Fatal("default target is not registered")
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown target", "[device]\ntarget = \"atmega328\"\n", "unknown target"},
		{"bad duration", "[device]\nsettle_before = \"soon\"\n", "settle_before"},
		{"negative settle", "[device]\nsettle_after = \"-1s\"\n", "negative"},
		{"zero timeout", "[host]\ntimeout = \"0s\"\n", "timeout"},
		{"vid without pid", "[host]\nusb_vid = 0x16d0\n", "together"},
		{"vid out of range", "[host]\nusb_vid = 0x10000\nusb_pid = 1\n", "out of range"},
		{"unknown key", "[device]\ntargets = \"m258ke\"\n", "unknown key"},
		{"syntax", "[device\n", "load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("config accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(os.TempDir(), "cdcboot-does-not-exist.toml")); err == nil {
		t.Fatal("missing file loaded")
	}
}
