// Package main is the entry point for the aptx negotiation toolkit.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/aptx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
