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

	"github.com/mame82/cdcboot/target"
	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the supported targets",
	Long:  "",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, td := range target.All() {
			marker := " "
			if td.Name == target.DefaultName {
				marker = "*"
			}
			fmt.Printf("%s %-12s %-4s %4d KB  page %4d  %s\n", marker, td.Name, td.Kind, td.Chunks, td.PageSize, td.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
