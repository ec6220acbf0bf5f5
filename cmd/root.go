// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version is overridden at build time with -ldflags "-X firestige.xyz/lidarpcd/cmd.version=...".
var version = "0.1.0"

var (
	// Global flags
	configFile string
	logLevel   string
	logFormat  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lidarpcd",
	Short: "lidarpcd - extract point clouds from Ouster LIDAR packet captures",
	Long: `lidarpcd replays a pcap or pcapng capture of a legacy Ouster sensor stream,
reassembles fragmented IPv4 datagrams, decodes the UDP lidar packets and writes
every complete rotation as a binary PCD file.

Settings come from flags, an optional YAML file (--config) and LIDARPCD_*
environment variables, in decreasing priority.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")

	// Add subcommands
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// addRunFlags registers the settings shared by extract and validate.
func addRunFlags(fs *pflag.FlagSet) {
	fs.IntP("port", "p", 0, "UDP destination port of the sensor stream (required)")
	fs.StringP("meta", "m", "", "sensor calibration JSON (required)")
	fs.StringP("input", "i", "", "pcap or pcapng capture (required)")
	fs.StringP("output", "o", "", "directory for .pcd files, created if missing (required)")
	fs.IntP("digits", "d", 4, "zero padding of output file names")
	fs.String("host", "", "only process IPv4 frames to or from this address")
	fs.Int("progress-interval", 100000, "packets between progress logs, 0 disables")
	fs.Bool("metrics", false, "serve Prometheus metrics while running")
	fs.String("metrics-listen", ":9091", "metrics listen address")
}
