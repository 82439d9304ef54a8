// Command recall builds hierarchical summary indexes and ranks nodes and
// agent memories against queries.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/recall/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is fine; API keys may come from the real environment.
	_ = godotenv.Load()

	os.Exit(cli.Execute(version, bootstrap))
}
