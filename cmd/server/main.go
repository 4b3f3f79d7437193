// Package main implements the tasktrack command: the HTTP API server and
// the operator subcommands for migrations, seeding users and minting
// access tokens.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
