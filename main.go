// Command sdcard drives an SD card behind the I/O coprocessor SD host.
package main

import "github.com/gregLibert/sd-card/cmd"

func main() {
	cmd.Execute()
}
