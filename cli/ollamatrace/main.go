package main

import (
	"os"

	ollamatracecmder "github.com/papercomputeco/ollamatrace/cmd/ollamatrace"
)

func main() {
	cmd := ollamatracecmder.NewOllamaTraceCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
