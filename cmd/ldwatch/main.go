package main

import (
	"os"

	"github.com/wonny/ldwatch/cmd/ldwatch/commands"
)

// main is the entry point for the ldwatch CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/ldwatch [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
