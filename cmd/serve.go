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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mame82/cdcboot/bootloader"
	"github.com/mame82/cdcboot/sim"
	"github.com/mame82/cdcboot/target"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	tmpServeTarget       = ""
	tmpServeListen       = ""
	tmpServeFlashFile    = ""
	tmpServeMetrics      = ""
	tmpServeSettleBefore time.Duration
	tmpServeSettleAfter  time.Duration
)

// ServeDevice runs a simulated bootloader until the host starts the
// application or the process is interrupted.
func ServeDevice(ctx context.Context) error {
	td := target.ByName(cfg.Device.Target)
	if td == nil {
		return fmt.Errorf("unknown target %q", cfg.Device.Target)
	}

	tr, err := sim.Listen(cfg.Device.Listen)
	if err != nil {
		return err
	}
	defer tr.Disable()

	opts := []sim.Option{sim.WithSettle(cfg.Device.SettleBefore, cfg.Device.SettleAfter)}
	if cfg.Device.FlashFile != "" {
		opts = append(opts, sim.WithFlashFile(cfg.Device.FlashFile))
	}
	dev := sim.NewDevice(td, tr, opts...)

	metrics := sim.NewMetrics(td.Name)
	if cfg.Device.Metrics != "" {
		go func() {
			if err := metrics.Serve(cfg.Device.Metrics); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	fmt.Printf("Simulating %s (%s), %d chunks of program memory\n", td.Name, td.Description, td.Chunks)
	fmt.Printf("Connect with: cdcboot --addr %s state\n", tr.Addr())

	runner := bootloader.NewRunner(dev, td.Chunks,
		bootloader.WithObserver(metrics),
		bootloader.WithLogger(log.WithFields(log.Fields{"component": "engine", "target": td.Name})),
	)
	err = runner.Run(ctx)
	if v := dev.Violations(); len(v) > 0 {
		log.WithField("violations", v).Warn("Flash controller misuse detected")
	}
	if errors.Cause(err) == context.Canceled {
		fmt.Println("Bootloader stopped")
		return nil
	}
	if err != nil {
		return err
	}

	if booted, crc := dev.Booted(); booted {
		fmt.Printf("Application started, program memory CRC %#04x\n", crc)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a simulated bootloader device on a TCP virtual serial port",
	Long:  "",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("target") {
			cfg.Device.Target = tmpServeTarget
		}
		if flags.Changed("listen") {
			cfg.Device.Listen = tmpServeListen
		}
		if flags.Changed("flash-file") {
			cfg.Device.FlashFile = tmpServeFlashFile
		}
		if flags.Changed("metrics") {
			cfg.Device.Metrics = tmpServeMetrics
		}
		if flags.Changed("settle-before") {
			cfg.Device.SettleBefore = tmpServeSettleBefore
		}
		if flags.Changed("settle-after") {
			cfg.Device.SettleAfter = tmpServeSettleAfter
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		return ServeDevice(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&tmpServeTarget, "target", "t", "", "target to simulate (see `targets`)")
	serveCmd.Flags().StringVarP(&tmpServeListen, "listen", "l", "", "TCP address of the virtual serial port")
	serveCmd.Flags().StringVarP(&tmpServeFlashFile, "flash-file", "f", "", "file backing the simulated program memory")
	serveCmd.Flags().StringVarP(&tmpServeMetrics, "metrics", "m", "", "address to serve prometheus metrics on")
	serveCmd.Flags().DurationVar(&tmpServeSettleBefore, "settle-before", 0, "delay before detaching on hand-off")
	serveCmd.Flags().DurationVar(&tmpServeSettleAfter, "settle-after", 0, "delay before starting the application")
}
