package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// A command line driver for training, encoding and decoding with `minbpe`.

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "bpe",
		Short:         "Train and run byte-level BPE tokenizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd, configFile); err != nil {
				return err
			}
			return setupLogging(viper.GetString("log-level"))
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "",
		"Path to config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringP("pattern", "p", "gpt4",
		"Split pattern: gpt4, gpt2, none, or a regular expression")
	flags.StringSlice("specials", nil, "Special token literals, in id order")
	flags.Int("cache-size", 65536, "Chunk encodings to cache, 0 disables")
	flags.StringP("ranks", "r", "",
		"Rank file (tiktoken format), local path or URL")
	flags.String("cache-dir", os.TempDir(),
		"Directory that downloaded rank files are kept in")
	flags.String("auth", "", "Bearer token for downloading rank files")
	flags.Bool("skip-invalid", false,
		"Skip rank entries whose merge cannot be recovered")

	root.AddCommand(
		newTrainCmd(),
		newEncodeCmd(),
		newDecodeCmd(),
		newReplCmd(),
	)
	return root
}

// initConfig layers flags over environment variables (MINBPE_*) over the
// config file.
func initConfig(cmd *cobra.Command, configFile string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("minbpe")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/minbpe")
		}
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	viper.SetEnvPrefix("MINBPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return nil
}

func setupLogging(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr,
		TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("bpe failed")
	}
}
