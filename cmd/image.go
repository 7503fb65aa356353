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
	"github.com/mame82/cdcboot/target"
	"github.com/spf13/cobra"
)

var imageCmd = &cobra.Command{
	Use:   "image <firmware.bin|firmware.hex>",
	Short: "Show size, chunk count and CRC of a firmware image",
	Long:  "",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := firmware.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Println(img.String())
		for _, td := range target.All() {
			fits := "fits"
			if !img.Fits(td.Chunks) {
				fits = "too large"
			}
			fmt.Printf("\t%-12s %s\n", td.Name, fits)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
}
