package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/itiky/educhain-dao/config"
)

// rootCmd is a base command.
var rootCmd = &cobra.Command{
	Use:   "educhain",
	Short: "Course governance DAO service and dashboard",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("rootCmd.Execute: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().String(config.FlagLogLevel, "info", "(optional) log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String(config.FlagLogFormat, "text", "(optional) log format (text, json)")
}
