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

	"github.com/spf13/cobra"
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Leave the bootloader and start the application",
	Long:  "The device detaches from USB and jumps to the application image.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closer, err := openProgrammer()
		if err != nil {
			return err
		}
		defer closer.Close()

		if err := p.EnterBootloader(); err != nil {
			return err
		}
		if err := p.EnterProgrammer(); err != nil {
			return err
		}
		fmt.Println("Application started")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bootCmd)
}
