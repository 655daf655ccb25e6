package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncroom",
	Short: "SyncRoom keeps watch-party playback and chat in sync across viewers.",
	Run: func(cmd *cobra.Command, args []string) {
		runApp(cmd.Context())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
