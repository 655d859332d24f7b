package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wbrown/minbpe/render"
)

// A REPL for interacting with a loaded tokenizer.

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively encode lines of text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tokenizer, err := cfg.loadTokenizer()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			reader := bufio.NewReader(cmd.InOrStdin())
			for {
				fmt.Fprint(out, ">>> ")
				input, readErr := reader.ReadString('\n')
				if readErr == io.EOF && input == "" {
					return nil
				} else if readErr != nil && readErr != io.EOF {
					return readErr
				}
				// Remove trailing newline and replace \n with newline.
				input = strings.TrimSuffix(input, "\n")
				input = strings.Replace(input, "\\n", "\n", -1)

				tokens, encodeErr := tokenizer.Encode(input)
				if encodeErr != nil {
					return encodeErr
				}
				pieces, renderErr := render.Pieces(tokens,
					tokenizer.Decode, "|")
				if renderErr != nil {
					return renderErr
				}
				fmt.Fprintf(out, "%v\n|%s\n", tokens, pieces)
			}
		},
	}
}
