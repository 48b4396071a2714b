package main

import (
	"fmt"
	"io"
	"os"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "run":
		err = runCommand(os.Args[2:], os.Stdout)
	case "inspect":
		err = inspectCommand(os.Args[2:], os.Stdout)
	case "topology":
		err = topologyCommand(os.Args[2:], os.Stdout)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("hydrosim v%s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	usage := `hydrosim - run many hydraulic scenarios against one loaded network

Usage:
  hydrosim <command> [options]

Available Commands:
  run         Run the scenarios of a batch file
  inspect     Summarize or dump a streamed result
  topology    Parse a network document and refresh its topology cache
  help        Show this help message
  version     Show version information

Environment:
  HYDRO_LIBRARY     Engine shared library (overrides the batch file)
  HYDRO_OUTPUT_DIR  Output directory (overrides the batch file)
  LOG_LEVEL         debug, info, warn or error
  LOG_FORMAT        json (default) or text

Examples:
  hydrosim run -config batch.yaml
  hydrosim inspect -node 11 results/peak.out
  hydrosim topology -workers 4 networks/net9.inp
`
	fmt.Fprint(w, usage)
}
