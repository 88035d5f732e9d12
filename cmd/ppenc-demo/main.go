// Package main provides the CLI entry point for the ppenc demo client/server.
package main

import (
	"fmt"
	"os"

	"github.com/flickpp/ppenc/internal/sysinfo"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags.
	// When "dev", we use sysinfo.Version which has enhanced dev version info.
	Version = "dev"
)

func init() {
	if Version == "dev" {
		Version = sysinfo.Version
	} else {
		sysinfo.Version = Version
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ppenc-demo",
		Short: "Demo client/server for the PPEnc encrypted message transport",
		Long: `ppenc-demo is a reference TCP client and server exercising the PPEnc
session-oriented encrypted transport.

It is a demonstration harness, not a security boundary: the bootstrap
handshake (token exchange, header/body state exchange) matches the upstream
example client but performs no peer authentication.`,
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sendCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
