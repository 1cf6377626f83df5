package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/pkg/api"
)

var (
	outputDir string
	cleanMode bool
)

// dirCmd represents the obfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir [source_directory]",
	Short: "Obfuscate every JavaScript and HTML file of a directory",
	Long: `Walks the source directory and writes an obfuscated copy of it to the
output directory. Paths matching the skip globs are left out, paths matching
the keep globs and non-script files are copied unchanged.

The source and output directories default to source_directory and
target_directory from the configuration file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if obf == nil {
			return fmt.Errorf("configuration not loaded")
		}
		source := obf.Config.SourceDirectory
		if len(args) == 1 {
			source = args[0]
		}
		target := outputDir
		if target == "" {
			target = obf.Config.TargetDirectory
		}
		if source == "" {
			return fmt.Errorf("source directory is required")
		}
		if target == "" {
			return fmt.Errorf("output directory is required (--output or target_directory)")
		}
		cmd.SilenceUsage = true
		return obfuscateDirectory(cmd.Context(), obf, source, target, cleanMode, cmd.OutOrStdout())
	},
}

func obfuscateDirectory(ctx context.Context, o *api.Obfuscator, source, target string, clean bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if clean {
		if err := cleanTarget(source, target); err != nil {
			return err
		}
	}

	report, err := o.ObfuscateDirectoryContext(ctx, source, target)
	if err != nil {
		return err
	}

	if !o.Config.Silent {
		fmt.Fprintf(out, "Obfuscated %d file(s), copied %d, skipped %d, renamed %d binding(s)\n",
			len(report.Obfuscated), len(report.Copied), len(report.Skipped), report.Stats.Renamed)
	}
	if len(report.Failed) > 0 {
		for _, f := range report.Failed {
			fmt.Fprintf(os.Stderr, "Error: %v\n", f)
		}
		return fmt.Errorf("%d file(s) failed to obfuscate", len(report.Failed))
	}
	return nil
}

// cleanTarget removes the output directory, refusing when that would also
// remove the source.
func cleanTarget(source, target string) error {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absTarget, absSource)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to clean %s: it contains the source directory %s", target, source)
	}
	if err := os.RemoveAll(absTarget); err != nil {
		return fmt.Errorf("error cleaning target directory %s: %w", target, err)
	}
	return nil
}

func init() {
	dirCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory path")
	dirCmd.Flags().BoolVar(&cleanMode, "clean", false, "Remove the output directory before obfuscating")
}
