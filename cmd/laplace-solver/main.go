package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davidscn/coupled-laplace/internal/cmd"
)

func main() {
	root, err := cmd.NewSolverCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
