// Package main is the entry point for the regress CLI.
package main

import "github.com/raysh454/regress/internal/cli"

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0"
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
