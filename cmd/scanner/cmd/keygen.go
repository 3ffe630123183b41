package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itc-kingsavage/savage-scanner/crypto"
	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new hex-encoded master key",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := util.RandomBytes(crypto.MasterKeySize)
		if err != nil {
			return err
		}
		fmt.Println(util.HexEncode(raw))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
