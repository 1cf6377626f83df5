package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

// FileError is a file that failed while abort_on_error was off.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// DirectoryReport summarizes a directory run.
type DirectoryReport struct {
	Obfuscated []string // relative paths, slash separated
	Copied     []string
	Skipped    []string
	Failed     []FileError
	Stats      obfuscator.Stats
}

type fileJob struct {
	rel       string
	src, dst  string
	obfuscate bool
}

// ObfuscateDirectory obfuscates every JavaScript and HTML file below
// inputDir into outputDir, preserving the directory structure.
//
// The function will:
//  1. Skip paths matching the configured skip globs
//  2. Copy files matching the keep globs, and files that are neither
//     JavaScript nor HTML, unchanged
//  3. Recreate symbolic links as links
//  4. Process files in parallel, bounded by the workers setting
//  5. Write a rename map per file under rename_map_dir when it is set
//
// With abort_on_error the first failure cancels the run and is returned.
// Otherwise failures are logged and listed in the report.
func (o *Obfuscator) ObfuscateDirectory(inputDir, outputDir string) (*DirectoryReport, error) {
	return o.ObfuscateDirectoryContext(context.Background(), inputDir, outputDir)
}

// ObfuscateDirectoryContext is ObfuscateDirectory with cancellation.
func (o *Obfuscator) ObfuscateDirectoryContext(ctx context.Context, inputDir, outputDir string) (*DirectoryReport, error) {
	inputInfo, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input directory %s: %w", inputDir, err)
	}
	if !inputInfo.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	report := &DirectoryReport{}
	jobs, err := o.collectJobs(inputDir, outputDir, report)
	if err != nil {
		return nil, err
	}

	o.startRun()
	logger := o.Context.Logger.Named("dir")
	workers := o.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.runJob(job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if o.Config.AbortOnError {
					return fmt.Errorf("failed to process %s: %w", job.src, err)
				}
				logger.Warn("failed to process file", zap.String("path", job.rel), zap.Error(err))
				report.Failed = append(report.Failed, FileError{Path: job.rel, Err: err})
				return nil
			}
			if res == nil {
				report.Copied = append(report.Copied, job.rel)
				return nil
			}
			report.Obfuscated = append(report.Obfuscated, job.rel)
			report.Stats.Add(res.Stats)
			o.record(res)
			PrintInfo("Processed: %s -> %s\n", job.src, job.dst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	o.sortMaps()
	sort.Strings(report.Obfuscated)
	sort.Strings(report.Copied)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })

	logger.Info("directory processed",
		zap.Int("obfuscated", len(report.Obfuscated)),
		zap.Int("copied", len(report.Copied)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("renamed", report.Stats.Renamed))
	return report, nil
}

// collectJobs walks inputDir, creates the output directories and symlinks,
// and returns the files to process.
func (o *Obfuscator) collectJobs(inputDir, outputDir string, report *DirectoryReport) ([]fileJob, error) {
	absOut, _ := filepath.Abs(outputDir)
	var jobs []fileJob

	err := filepath.WalkDir(inputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(inputDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		slashRel := filepath.ToSlash(rel)
		dst := filepath.Join(outputDir, rel)

		if d.IsDir() {
			if abs, _ := filepath.Abs(p); abs == absOut {
				return filepath.SkipDir
			}
			if matchAny(o.Config.SkipPaths, slashRel, true) {
				report.Skipped = append(report.Skipped, slashRel)
				return filepath.SkipDir
			}
			if err := os.MkdirAll(dst, 0755); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", dst, err)
			}
			return nil
		}
		if matchAny(o.Config.SkipPaths, slashRel, false) {
			PrintInfo("Skipping path (matches skiplist): %s\n", slashRel)
			report.Skipped = append(report.Skipped, slashRel)
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return copySymlink(p, dst)
		}
		obfuscate := (o.Config.IsJSFile(p) || o.Config.IsHTMLFile(p)) &&
			!matchAny(o.Config.KeepPaths, slashRel, false)
		jobs = append(jobs, fileJob{rel: slashRel, src: p, dst: dst, obfuscate: obfuscate})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", inputDir, err)
	}
	return jobs, nil
}

// runJob obfuscates or copies one file. A nil result means it was copied.
func (o *Obfuscator) runJob(job fileJob) (*obfuscator.Result, error) {
	if !job.obfuscate {
		return nil, copyFile(job.src, job.dst)
	}
	res, err := obfuscator.ProcessFile(job.src, o.Context)
	if err != nil {
		return nil, err
	}
	if err := writeFile(job.dst, []byte(res.Code)); err != nil {
		return nil, err
	}
	if o.Config.RenameMapDir != "" {
		target := filepath.Join(o.Config.RenameMapDir, filepath.FromSlash(job.rel)+".map.json")
		if err := saveMaps(res.RenameMaps, target); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// matchAny reports whether a slash separated relative path matches one of
// the globs. A glob also matches by base name, and dir/* matches dir itself.
func matchAny(patterns []string, rel string, isDir bool) bool {
	base := path.Base(rel)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if isDir && strings.HasSuffix(pattern, "/*") {
			if ok, _ := path.Match(strings.TrimSuffix(pattern, "/*"), rel); ok {
				return true
			}
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to write file %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("failed to read symlink %s: %w", src, err)
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", dst, err)
	}
	return nil
}
