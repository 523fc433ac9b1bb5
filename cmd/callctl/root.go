package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkeye/Chorus/internal/config"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "callctl",
	Short: "Headless participant for Chorus calls",
	Long: `callctl joins a Chorus call from the terminal. It signals through the
Chorus server and negotiates peer-to-peer media with every other participant.`,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("server", "", "signaling server URL (client.server_url)")
	flags.String("transport", "", "receive transport: poll or push (client.transport)")
	flags.String("log-level", "", "log level (log_level)")

	_ = v.BindPFlag("client.server_url", flags.Lookup("server"))
	_ = v.BindPFlag("client.transport", flags.Lookup("transport"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(joinCmd, membersCmd)
}

// loadConfig reads the config file and environment, with flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(v)
	if err != nil {
		return nil, err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg, nil
}

func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("callctl failed")
		os.Exit(1)
	}
}
