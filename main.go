// Package main is the entry point for the lidarpcd point cloud extractor.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/lidarpcd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
