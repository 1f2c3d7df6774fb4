// Budgetd is a budgeting application server: a TCP listener dispatching
// requests to a fixed set of background actors plus one actor per
// logged-in user.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	envFile := flag.String("env", "", "path to .env file (default: ./.env if present)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("budgetd", version)
		os.Exit(0)
	}

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
