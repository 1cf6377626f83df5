package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/internal/renamer"
)

var whatisMaps []string

// whatisCmd represents the whatis command
var whatisCmd = &cobra.Command{
	Use:   "whatis <name>",
	Short: "Looks up a generated name, or an original one, in saved rename maps",
	Long: `Loads the rename maps written by a previous run and reports which binding a
generated name replaced. Given an original name instead, it lists the names
that binding received, or why it was kept.

Pass --map (-m) once per map file, or a directory to search every map in it.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if len(whatisMaps) == 0 {
			return fmt.Errorf("--map (-m) flag is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return whatis(whatisMaps, args[0], cmd.OutOrStdout())
	},
}

func whatis(paths []string, name string, out io.Writer) error {
	files, err := mapFiles(paths)
	if err != nil {
		return err
	}
	found := false
	for _, file := range files {
		m, err := renamer.LoadRenameMap(file)
		if err != nil {
			return fmt.Errorf("error loading rename map %s: %w", file, err)
		}
		if e, ok := m.Original(name); ok {
			fmt.Fprintf(out, "%s: %s was %s (declared at offset %d)\n", m.Source, name, e.Original, e.Pos)
			found = true
		}
		for _, e := range m.LookupName(name) {
			fmt.Fprintf(out, "%s: %s became %s (declared at offset %d)\n", m.Source, name, e.Replacement, e.Pos)
			found = true
		}
		for _, k := range m.Kept {
			if k.Name == name {
				fmt.Fprintf(out, "%s: %s was kept: %s\n", m.Source, name, k.Reason)
				found = true
			}
		}
	}
	if !found {
		return fmt.Errorf("name %q not found in %d rename map(s)", name, len(files))
	}
	return nil
}

// mapFiles expands directories into the rename maps they contain.
func mapFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("rename map %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isMapFile(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error searching %s for rename maps: %w", p, err)
		}
	}
	return files, nil
}

func isMapFile(name string) bool {
	if !strings.Contains(name, ".map.") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func init() {
	whatisCmd.Flags().StringArrayVarP(&whatisMaps, "map", "m", nil, "Rename map file or directory of maps (repeatable, required)")
}
