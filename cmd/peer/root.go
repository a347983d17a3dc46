package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dkeye/Meet/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagServer   string
	flagLogLevel string
	flagConfig   string

	peerCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "peer",
	Short: "Headless participant for Meet mesh meetings",
	Long: `peer joins a Meet meeting from the terminal. It connects to the signaling
server, negotiates a WebRTC connection with every other participant and
publishes IVF/Ogg files as its camera and microphone.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(flagLogLevel)
		if err != nil {
			return fmt.Errorf("bad log level %q: %w", flagLogLevel, err)
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

		if flagConfig != "" {
			peerCfg, err = config.LoadFile(flagConfig)
		} else {
			peerCfg, err = config.Load()
		}
		return err
	},
}

// Execute runs the root command with a context cancelled on interrupt.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "Meet server base URL")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file for ice_servers and negotiation_timeout (default config/config.<CONFIG_ENV>.yaml)")
}
