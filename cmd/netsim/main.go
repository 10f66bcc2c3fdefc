// Command netsim runs the WiFi example simulations.
package main

import (
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	atexit.Exit(code)
}
