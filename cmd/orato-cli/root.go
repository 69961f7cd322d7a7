package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "orato-cli",
	Short:         "Record voice-practice takes and get AI feedback from the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(watchCmd)
}
