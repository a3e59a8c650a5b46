// Package main provides the entry point for bpsim.
// bpsim is a trace-driven branch direction predictor simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/bpsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("bpsim - Branch Predictor Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: bpsim [options] <trace-file>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config           Path to predictor configuration JSON file")
	fmt.Println("  -frontend-config  Path to front end configuration JSON file")
	fmt.Println("  -type             Predictor type override (gas or bimodal)")
	fmt.Println("  -elf              ARM64 ELF image used to classify trace PCs")
	fmt.Println("  -depth            Branches in flight per thread")
	fmt.Println("  -penalty          Misprediction penalty in cycles")
	fmt.Println("  -btb              Target presence table entries (0 disables)")
	fmt.Println("  -metrics          Write Prometheus metrics to a textfile")
	fmt.Println("  -trace-events     Print every predictor event to stderr")
	fmt.Println("  -v                Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/bpsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/bpsim' instead.")
	}
}
