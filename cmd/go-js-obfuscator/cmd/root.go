// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/pkg/api"
)

var (
	cfgFile string          // Variable to hold the config file path from the flag
	obf     *api.Obfuscator // Built once from the config file and flag overrides

	// Flag variables mapped to config keys for override
	silentMode    bool     // -> silent
	debugMode     bool     // -> debug_mode
	abortOnError  bool     // -> abort_on_error
	renameGlobals bool     // -> rename_globals
	renameLexical bool     // -> rename_global_lexicals
	generator     string   // -> identifier_names_generator
	namePrefix    string   // -> identifiers_prefix
	reservedNames []string // -> reserved_names
	seed          int      // -> seed
	workers       int      // -> workers
	renameMapDir  string   // -> rename_map_dir
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "go-js-obfuscator",
	Short: "A CLI tool to rename JavaScript identifiers safely.",
	Long: `go-js-obfuscator renames variables, parameters, functions, classes and
destructured bindings to generated names, resolving every reference
through the scope it lives in so the program keeps its behavior.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if obf != nil {
			return nil
		}
		o, err := api.NewObfuscator(api.Options{
			ConfigPath:      cfgFile,
			ConfigOverrides: flagOverrides(cmd),
		})
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		obf = o
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// flagOverrides collects the config keys of the flags the user set explicitly.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := cmd.Flags()
	overrides := map[string]interface{}{}
	set := func(flag, key string, value interface{}) {
		if flags.Changed(flag) {
			overrides[key] = value
		}
	}
	set("silent", "silent", silentMode)
	set("debug", "debug_mode", debugMode)
	set("abort-on-error", "abort_on_error", abortOnError)
	set("rename-globals", "rename_globals", renameGlobals)
	set("rename-global-lexicals", "rename_global_lexicals", renameLexical)
	set("generator", "identifier_names_generator", generator)
	set("prefix", "identifiers_prefix", namePrefix)
	set("reserved-name", "reserved_names", reservedNames)
	set("seed", "seed", seed)
	set("workers", "workers", workers)
	set("rename-map-dir", "rename_map_dir", renameMapDir)
	return overrides
}

// addPersistentFlags registers the config override flags on c.
func addPersistentFlags(c *cobra.Command) {
	flags := c.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	flags.BoolVar(&debugMode, "debug", false, "Enable debug logging (overrides config)")
	flags.BoolVar(&abortOnError, "abort-on-error", true, "Stop a directory run on the first failing file (overrides config)")
	flags.BoolVar(&renameGlobals, "rename-globals", false, "Also rename program-level var and function bindings (overrides config)")
	flags.BoolVar(&renameLexical, "rename-global-lexicals", false, "Rename program-level let, const and class bindings, defaults to --rename-globals (overrides config)")
	flags.StringVarP(&generator, "generator", "g", "", "Name generator: hexadecimal, mangled or dictionary (overrides config)")
	flags.StringVar(&namePrefix, "prefix", "", "Prefix for every generated name (overrides config)")
	flags.StringArrayVar(&reservedNames, "reserved-name", nil, "Regular expression of names never renamed, repeatable (overrides config)")
	flags.IntVar(&seed, "seed", 0, "Seed of the hexadecimal generator (overrides config)")
	flags.IntVarP(&workers, "workers", "j", 0, "Files processed in parallel, 0 for one per CPU (overrides config)")
	flags.StringVar(&renameMapDir, "rename-map-dir", "", "Write a rename map per processed file under this directory (overrides config)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(obfuscateCmd)
	rootCmd.AddCommand(whatisCmd)
	rootCmd.AddCommand(replCmd)
}
