package main

import (
	"os"

	"github.com/AndriyPolukhin/app-aiv/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
