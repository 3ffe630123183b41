package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Scanner holds encrypted bot session credentials and pairs new devices",
	Long: `Scanner is the session vault and pairing authority for a fleet of bot
personas sharing one authenticated messaging connection. It encrypts
protocol credentials at rest across a durable store and a filesystem
mirror, and issues short-lived linking codes or QR handshakes to
authorize new device sessions.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
