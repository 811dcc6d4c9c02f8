package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/cronpost/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cronpost: %v\n", err)
		os.Exit(1)
	}
}
