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
	"io/ioutil"

	"github.com/mame82/cdcboot/firmware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	tmpDumpFile   = ""
	tmpDumpOffset = 0
	tmpDumpLength = 0
)

// DumpFlash prints the program memory backing file of a simulated device in
// hex, 32 bytes per line.
func DumpFlash(path string, offset, length int) error {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read flash file")
	}
	if offset < 0 || offset > len(raw) {
		return fmt.Errorf("offset %#x outside of flash file (%#x bytes)", offset, len(raw))
	}
	end := len(raw)
	if length > 0 && offset+length < end {
		end = offset + length
	}
	data := raw[offset:end]

	linebreakCount := 32
	linecount := 0
	for i, b := range data {
		if linecount == 0 {
			fmt.Printf("%#06x: ", offset+i)
		}
		linecount++
		fmt.Printf("%02x", b)
		if linecount == linebreakCount {
			fmt.Println()
			linecount = 0
		}
	}
	if linecount != 0 {
		fmt.Println()
	}

	fmt.Printf("%d bytes, CRC %#04x\n", len(data), firmware.CRC(data))
	return nil
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the program memory of a simulated device",
	Long:  "",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := tmpDumpFile
		if path == "" {
			path = cfg.Device.FlashFile
		}
		if path == "" {
			return errors.New("no flash file given, use --file or set device.flash_file")
		}
		return DumpFlash(path, tmpDumpOffset, tmpDumpLength)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&tmpDumpFile, "file", "f", "", "flash file of the simulated device")
	dumpCmd.Flags().IntVarP(&tmpDumpOffset, "offset", "o", 0, "first byte to dump")
	dumpCmd.Flags().IntVarP(&tmpDumpLength, "length", "n", 0, "number of bytes to dump, 0 for all")
}
