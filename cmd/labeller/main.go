package main

import (
	"fmt"
	"os"
)

var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
