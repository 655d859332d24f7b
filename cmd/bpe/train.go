package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/wbrown/minbpe/resources"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <corpus.txt>",
		Short: "Learn merges from a UTF-8 text file and write a rank file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Ranks == "" {
				return fmt.Errorf("no output rank file given, use --ranks")
			}
			corpus, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tokenizer, err := cfg.newTokenizer()
			if err != nil {
				return err
			}
			encoded, err := tokenizer.TrainContext(cmd.Context(),
				string(corpus), cfg.VocabSize)
			if err != nil {
				return err
			}
			ranks, err := tokenizer.ExportRanks()
			if err != nil {
				return err
			}
			if err := resources.SaveRankFile(cfg.Ranks, ranks); err != nil {
				return err
			}
			log.Info().
				Str("corpus", humanize.Bytes(uint64(len(corpus)))).
				Str("tokens", humanize.Comma(int64(len(encoded)))).
				Int("merges", tokenizer.Merges().Len()).
				Str("ranks", cfg.Ranks).
				Msg("wrote rank file")
			return nil
		},
	}
	cmd.Flags().IntP("vocab-size", "n", 512,
		"Target vocabulary size, 256 plus the number of merges")
	cmd.Flags().IntP("workers", "w", 1,
		"Goroutines used to count pairs")
	return cmd
}
