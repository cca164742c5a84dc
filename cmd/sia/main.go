// Command sia is the self-initiating agent runtime: it senses connected
// domains, surfaces problems with solution proposals, and composes and
// runs sandboxed agents for the solutions the user approves.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local runs; environment wins over the file.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		os.Exit(1)
	}
}
