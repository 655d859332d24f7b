package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/wbrown/minbpe"
	"github.com/wbrown/minbpe/resources"
)

type Config struct {
	Pattern     string   `mapstructure:"pattern"`
	Specials    []string `mapstructure:"specials"`
	CacheSize   int      `mapstructure:"cache-size"`
	Ranks       string   `mapstructure:"ranks"`
	CacheDir    string   `mapstructure:"cache-dir"`
	Auth        string   `mapstructure:"auth"`
	SkipInvalid bool     `mapstructure:"skip-invalid"`
	VocabSize   int      `mapstructure:"vocab-size"`
	Workers     int      `mapstructure:"workers"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (cfg *Config) options() []minbpe.Option {
	opts := []minbpe.Option{
		minbpe.WithLogger(log.Logger),
		minbpe.WithSpecialTokens(cfg.Specials...),
		minbpe.WithCacheSize(cfg.CacheSize),
	}
	if cfg.Workers > 0 {
		opts = append(opts, minbpe.WithWorkers(cfg.Workers))
	}
	return opts
}

// newTokenizer builds an untrained tokenizer with the configured split
// pattern, plus any extra options.
func (cfg *Config) newTokenizer(extra ...minbpe.Option) (*minbpe.Tokenizer,
	error) {
	opts := append(cfg.options(), extra...)
	switch cfg.Pattern {
	case "none", "basic":
		return minbpe.NewBasicTokenizer(opts...)
	case "", "gpt4":
		return minbpe.NewRegexTokenizer(opts...)
	case "gpt2":
		return minbpe.NewRegexTokenizer(append(opts,
			minbpe.WithSplitPattern(minbpe.GPT2SplitPattern))...)
	default:
		return minbpe.NewRegexTokenizer(append(opts,
			minbpe.WithSplitPattern(cfg.Pattern))...)
	}
}

// loadTokenizer resolves the configured rank file and recovers its merges.
func (cfg *Config) loadTokenizer() (*minbpe.Tokenizer, error) {
	if cfg.Ranks == "" {
		return nil, fmt.Errorf("no rank file given, use --ranks")
	}
	ranks, err := resources.ResolveRanks(cfg.Ranks, cfg.CacheDir, cfg.Auth)
	if err != nil {
		return nil, err
	}
	policy := minbpe.AbortOnError
	if cfg.SkipInvalid {
		policy = minbpe.SkipInvalid
	}
	recovered, err := minbpe.RecoverMerges(ranks, policy)
	if err != nil {
		return nil, err
	}
	for _, skipped := range recovered.Skipped {
		log.Warn().Err(skipped).Msg("skipped rank entry")
	}
	log.Info().
		Str("ranks", cfg.Ranks).
		Int("merges", recovered.Merges.Len()).
		Int("skipped", len(recovered.Skipped)).
		Bool("permuted", recovered.Permutation != nil).
		Msg("recovered merges")
	return cfg.newTokenizer(recovered.Options()...)
}
