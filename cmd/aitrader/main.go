package main

import (
	"os"

	"github.com/HKUDS/AI-Trader-sub000/cmd/aitrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
