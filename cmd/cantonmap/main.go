package main

import (
	"os"

	"github.com/gyeh/cantonhealth/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
