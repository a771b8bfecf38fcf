/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jawabbot",
	Short: "Telegram bot that answers questions from Brainly",
	Long: "Jawabbot looks questions up on Brainly, picks an answered record and delivers it to " +
		"Telegram chats and inline queries. Run `jawabbot gateway` to serve the bot or " +
		"`jawabbot ask` to preview answers locally.",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
