package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/pkg/api"
)

var (
	outputFile    string // Flag variable for output file path
	renameMapFile string // Flag variable for the rename map path
)

// fileCmd represents the obfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file <js_or_html_file>",
	Short: "Obfuscate a single JavaScript or HTML file",
	Long: `Reads a single JavaScript file, or the inline scripts of an HTML page,
renames its local bindings and writes the result to stdout or a specified file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if obf == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true
		return obfuscateFile(obf, args[0], outputFile, renameMapFile, cmd.OutOrStdout())
	},
}

// obfuscateFile writes the obfuscated input to output, or to stdout when
// output is empty, and saves the rename map when mapPath is set.
func obfuscateFile(o *api.Obfuscator, input, output, mapPath string, stdout io.Writer) error {
	if output != "" {
		if err := o.ObfuscateFileToFile(input, output); err != nil {
			return err
		}
	} else {
		code, err := o.ObfuscateFile(input)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, code)
	}

	if mapPath != "" && len(o.RenameMaps()) > 0 {
		if err := o.SaveRenameMap(mapPath); err != nil {
			return fmt.Errorf("error saving rename map: %w", err)
		}
	}

	// Progress goes to stdout only when the code does not.
	if output != "" && !o.Config.Silent {
		stats := o.Stats()
		api.PrintInfo("Renamed %d of %d bindings in %s (%d kept, %d unresolved names)\n",
			stats.Renamed, stats.Bindings, output, stats.Kept, stats.Unresolved)
	}
	return nil
}
