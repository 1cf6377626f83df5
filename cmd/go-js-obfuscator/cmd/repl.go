package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/pkg/api"
)

const (
	replPrompt     = "js> "
	replContPrompt = "... "
)

// replCmd represents the interactive repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Obfuscate JavaScript typed at an interactive prompt",
	Long: `Reads JavaScript lines until a blank line, then prints the obfuscated
snippet. Each snippet is renamed on its own.

Commands at the start of a snippet:
  .map   print the rename map of the last snippet
  .exit  leave (as does Control-D)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if obf == nil {
			return fmt.Errorf("configuration not loaded")
		}
		rl, err := readline.New(replPrompt)
		if err != nil {
			return err
		}
		defer rl.Close()
		return repl(obf, rl.Readline, rl.SetPrompt, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// repl runs the read, obfuscate, print loop. It returns nil on EOF or .exit
// and only fails when reading fails.
func repl(o *api.Obfuscator, readLine func() (string, error), setPrompt func(string), out, errOut io.Writer) error {
	var lines []string
	flush := func() {
		src := strings.Join(lines, "\n")
		lines = lines[:0]
		if strings.TrimSpace(src) == "" {
			return
		}
		code, err := o.ObfuscateCode(src)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return
		}
		fmt.Fprintln(out, code)
	}

	for {
		if setPrompt != nil {
			if len(lines) == 0 {
				setPrompt(replPrompt)
			} else {
				setPrompt(replContPrompt)
			}
		}
		line, err := readLine()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			lines = lines[:0]
			fmt.Fprintln(errOut, err)
			continue
		case errors.Is(err, io.EOF):
			flush()
			return nil
		case err != nil:
			return err
		}

		if len(lines) == 0 {
			switch strings.TrimSpace(line) {
			case ".exit":
				return nil
			case ".map":
				printMaps(o, out)
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
}

func printMaps(o *api.Obfuscator, out io.Writer) {
	maps := o.RenameMaps()
	if len(maps) == 0 {
		fmt.Fprintln(out, "(no snippet obfuscated yet)")
		return
	}
	for _, m := range maps {
		for _, e := range m.Entries {
			fmt.Fprintf(out, "%s -> %s\n", e.Original, e.Replacement)
		}
		for _, k := range m.Kept {
			fmt.Fprintf(out, "%s kept: %s\n", k.Name, k.Reason)
		}
	}
}
