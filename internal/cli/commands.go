// Package cli implements the chartbridge command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chartbridge/chartbridge/internal/bridge/server"
	"github.com/chartbridge/chartbridge/internal/bridge/wire"
)

var configFile string

var errorLabel = color.New(color.FgRed)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chartbridge [command] [flags]",
	Short: "Chartbridge - chat-driven chart generation service",
	Long: `Chartbridge bridges a chat client and rendering clients. It answers
chat prompts with generated chart configurations, collects live data
samples from rendering clients over session channels, and can export a
chart as an installable component.

Examples:
  # Start the service
  chartbridge serve --config /etc/chartbridge/chartbridge.conf

  # Print the version
  chartbridge version`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", DefaultConfigFile, "Path to configuration file to override default")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	if err := rootCmd.Execute(); err != nil {
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of chartbridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chartbridge version: %s\n", server.Version)
			fmt.Printf("protocol version:    %s\n", wire.Version)
		},
	}
}
