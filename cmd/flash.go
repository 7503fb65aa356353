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

	"github.com/mame82/cdcboot/firmware"
	"github.com/mame82/cdcboot/host"
	"github.com/mame82/cdcboot/protocol"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var tmpFlashBoot = false

// FlashFirmwareFromFile writes a raw or Intel HEX image to the device and
// optionally starts it.
func FlashFirmwareFromFile(path string, boot bool) error {
	img, err := firmware.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("Opened firmware '%s'\n", path)
	fmt.Println(img.String())

	bar := progressbar.NewOptions(img.Chunks()*protocol.ChunkSize,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Writing"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	p, closer, err := openProgrammer(host.WithProgress(func(done, total int) {
		bar.Set(done * protocol.ChunkSize)
	}))
	if err != nil {
		return err
	}
	defer closer.Close()

	state, err := p.GetState()
	if err != nil {
		return err
	}
	if state != protocol.BootloaderStateInBootloader {
		return fmt.Errorf("device is not in bootloader mode (%s)", state)
	}

	ctx, cancel := signalContext()
	defer cancel()

	err = p.WriteFirmware(ctx, img)
	switch e := errors.Cause(err).(type) {
	case nil:
		bar.Finish()
	case *host.ChunkError:
		fmt.Println()
		return fmt.Errorf("device failed to write chunk %d (offset %#x), flash it again", e.Index, e.Index*protocol.ChunkSize)
	default:
		fmt.Println()
		if e == host.ErrCapacity {
			return fmt.Errorf("firmware does not fit into the device: %v", err)
		}
		if e == host.ErrCancelled {
			fmt.Println("Write cancelled, the application is incomplete")
			return nil
		}
		return err
	}
	fmt.Printf("Firmware written, CRC %#04x\n", img.CRC())

	if boot {
		if err := p.EnterProgrammer(); err != nil {
			return err
		}
		fmt.Println("Application started")
	}
	return nil
}

var flashCmd = &cobra.Command{
	Use:   "flash <firmware.bin|firmware.hex>",
	Short: "Flash a firmware image to the device",
	Long: `Flash a raw binary or Intel HEX application image. The image is sent in
1 KB chunks, the last one padded with 0xff. Interrupting the transfer cancels
the write session on the device after the current chunk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return FlashFirmwareFromFile(args[0], tmpFlashBoot)
	},
}

func init() {
	rootCmd.AddCommand(flashCmd)
	flashCmd.Flags().BoolVarP(&tmpFlashBoot, "boot", "b", false, "start the application after flashing")
}
