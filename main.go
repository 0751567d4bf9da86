// capconv converts wireless capture files into Parquet with tshark.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"capconv/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "capconv: %v\n", err)
		os.Exit(1)
	}
}
