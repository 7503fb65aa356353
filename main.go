package main

import "github.com/mame82/cdcboot/cmd"

func main() {
	cmd.Execute()
}
