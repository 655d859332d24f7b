package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wbrown/minbpe/render"
	"github.com/wbrown/minbpe/types"
)

// inputText returns the joined arguments, or stdin when there are none or
// the only argument is "-".
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		input, err := io.ReadAll(cmd.InOrStdin())
		return string(input), err
	}
	return strings.Join(args, " "), nil
}

func newEncodeCmd() *cobra.Command {
	var (
		binPath   string
		use32     bool
		highlight bool
	)
	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode text to token ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tokenizer, err := cfg.loadTokenizer()
			if err != nil {
				return err
			}
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			tokens, err := tokenizer.Encode(text)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if binPath != "" {
				bin, binErr := tokens.ToBin(use32)
				if binErr != nil {
					return binErr
				}
				return os.WriteFile(binPath, *bin, 0644)
			}
			fmt.Fprintf(out, "%v\n", tokens)
			if highlight {
				highlighted, renderErr := render.Highlight(tokens,
					tokenizer.Decode)
				if renderErr != nil {
					return renderErr
				}
				fmt.Fprintln(out, highlighted)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&binPath, "bin", "o", "",
		"Write tokens as little-endian binary to this file")
	cmd.Flags().BoolVar(&use32, "uint32", false,
		"Write 32-bit tokens instead of 16-bit")
	cmd.Flags().BoolVar(&highlight, "highlight", false,
		"Print the text with token boundaries coloured")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var (
		binPath string
		use32   bool
		trim    bool
	)
	cmd := &cobra.Command{
		Use:   "decode [ids...]",
		Short: "Decode token ids back to text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tokenizer, err := cfg.loadTokenizer()
			if err != nil {
				return err
			}
			var tokens types.Tokens
			if binPath != "" {
				bin, readErr := os.ReadFile(binPath)
				if readErr != nil {
					return readErr
				}
				if use32 {
					tokens = *types.TokensFromBin32(&bin)
				} else {
					tokens = *types.TokensFromBin(&bin)
				}
			} else {
				tokens = make(types.Tokens, 0, len(args))
				for _, arg := range args {
					id, parseErr := strconv.ParseUint(
						strings.Trim(arg, "[],"), 10, 32)
					if parseErr != nil {
						return fmt.Errorf("bad token id %q: %w", arg,
							parseErr)
					}
					tokens = append(tokens, types.Token(id))
				}
			}
			if trim {
				tokens = tokenizer.TrimTokens(tokens)
			}
			text, err := tokenizer.Decode(tokens)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&binPath, "bin", "i", "",
		"Read little-endian binary tokens from this file")
	cmd.Flags().BoolVar(&use32, "uint32", false,
		"Read 32-bit tokens instead of 16-bit")
	cmd.Flags().BoolVar(&trim, "trim", false,
		"Drop trailing tokens that end inside a UTF-8 sequence")
	return cmd
}
