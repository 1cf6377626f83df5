package cmd

import (
	"github.com/spf13/cobra"
)

// obfuscateCmd represents the base command for obfuscation actions
var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate",
	Short: "Renames the identifiers of JavaScript code",
	Long: `Provides subcommands to obfuscate individual files or entire directories.

Example:
  go-js-obfuscator obfuscate file app.js -o app.obf.js --rename-map app.map.json
  go-js-obfuscator obfuscate dir ./src -o ./dist --clean`,
}

func init() {
	obfuscateCmd.AddCommand(fileCmd)
	obfuscateCmd.AddCommand(dirCmd)
}
