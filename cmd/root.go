// Copyright © 2019 Marcus Mengs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mame82/cdcboot/config"
	"github.com/mame82/cdcboot/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// DefaultConfigFile is read when present and no --config flag is given.
const DefaultConfigFile = "cdcboot.toml"

var (
	cfg = config.Default()

	tmpConfigPath = ""
	tmpLogLevel   = ""
	tmpLogJSON    = false
	tmpPort       = ""
	tmpAddress    = ""
	tmpUSB        = ""
	tmpTimeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "cdcboot",
	Short: "USB CDC firmware update bootloader and programmer",
	Long: `cdcboot runs a simulated USB CDC bootloader device and talks to real or
simulated ones: query their state, flash an application image in 1 KB
chunks and start the application.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&tmpConfigPath, "config", "c", "", "path to TOML config file (default ./"+DefaultConfigFile+" if present)")
	pf.StringVar(&tmpLogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.BoolVar(&tmpLogJSON, "log-json", false, "log in JSON format")
	pf.StringVarP(&tmpPort, "port", "p", "", "serial port of the device")
	pf.StringVarP(&tmpAddress, "addr", "a", "", "address of a simulated device")
	pf.StringVarP(&tmpUSB, "usb", "u", "", "USB VID:PID of the device, e.g. 16d0:0e6e")
	pf.DurationVar(&tmpTimeout, "timeout", 0, "time to wait for each reply of the device")
}

func loadConfig(cmd *cobra.Command) error {
	path := tmpConfigPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = tmpLogLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = tmpLogJSON
	}
	if flags.Changed("port") {
		cfg.Host.Port = tmpPort
	}
	if flags.Changed("addr") {
		cfg.Host.Address = tmpAddress
	}
	if flags.Changed("usb") {
		vid, pid, err := parseUSBID(tmpUSB)
		if err != nil {
			return err
		}
		cfg.Host.USBVID, cfg.Host.USBPID = vid, pid
	}
	if flags.Changed("timeout") {
		cfg.Host.Timeout = tmpTimeout
	}

	if err := logging.Configure(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return err
	}
	return cfg.Validate()
}

func parseUSBID(s string) (vid, pid uint16, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid USB id %q, want VID:PID", s)
	}
	v, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, errors.Wrap(err, "USB vendor id")
	}
	p, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, errors.Wrap(err, "USB product id")
	}
	if v == 0 || p == 0 {
		return 0, 0, fmt.Errorf("invalid USB id %q", s)
	}
	return uint16(v), uint16(p), nil
}
