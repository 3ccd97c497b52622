// Command reactord is the process entrypoint: a cobra CLI that wires
// configuration, logging, the example handlers, and the reactor Server
// together, per spec §4.K.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
