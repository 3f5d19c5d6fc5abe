package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"webpconv/logger"

	"github.com/gabriel-vasile/mimetype"
)

// OutputDirName is the per-directory subfolder used when originals are kept.
const OutputDirName = "converted_webp"

const outputExt = ".webp"

var supportedFormats = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// ErrInterrupted is returned when the run context is cancelled between files.
var ErrInterrupted = errors.New("process interrupted by user")

// FileConverter converts one source file into a WebP file at dst.
type FileConverter interface {
	Convert(src, dst string) error
}

type Processor struct {
	Converter    FileConverter
	Console      *logger.Console
	Delete       bool
	VerifyOutput bool
	Stats        *ProcessStats
}

type ProcessStats struct {
	Directories        int
	TotalFiles         int
	ConvertedFiles     int
	SkippedFiles       int
	FailedFiles        int
	DeletedFiles       int
	TotalOriginalSize  int64
	TotalConvertedSize int64
}

// FileError pairs a source file with the reason its conversion failed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// DirectoryReport is the outcome of processing a single directory.
type DirectoryReport struct {
	Dir         string
	OutputDir   string
	Eligible    []string
	Converted   []string
	Skipped     []string
	Deleted     []string
	Failed      []*FileError
	Unprocessed []string
}

func NewProcessor(cfg *Config, conv FileConverter, console *logger.Console) *Processor {
	return &Processor{
		Converter:    conv,
		Console:      console,
		Delete:       cfg.Delete,
		VerifyOutput: cfg.VerifyOutput,
		Stats:        &ProcessStats{},
	}
}

func isSupported(name string) bool {
	return supportedFormats[strings.ToLower(filepath.Ext(name))]
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// OutputName maps a source file name to its WebP file name.
func OutputName(name string) string {
	return baseName(name) + outputExt
}

// regularFiles lists the names of the regular files directly inside dir,
// following symlinks, in lexical order.
func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !entry.Type().IsRegular() {
			info, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func supportedFiles(dir string) ([]string, error) {
	names, err := regularFiles(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range names {
		if isSupported(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func ensureOutputDirectory(dir string) (string, error) {
	outputDir := filepath.Join(dir, OutputDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	return outputDir, nil
}

// ProcessDirectory converts the supported files directly inside dir. A
// directory without supported files is left untouched. The only error that
// stops the loop early is ErrInterrupted; per-file failures are recorded in
// the report.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) (*DirectoryReport, error) {
	report := &DirectoryReport{Dir: dir}
	p.Stats.Directories++

	files, err := supportedFiles(dir)
	if err != nil {
		return report, fmt.Errorf("error reading directory %s: %w", dir, err)
	}
	if len(files) == 0 {
		return report, nil
	}
	report.Eligible = files
	p.Stats.TotalFiles += len(files)

	timer := p.Console.StartTimer("Directory " + dir)
	defer timer.End()

	outputDir := dir
	if !p.Delete {
		if outputDir, err = ensureOutputDirectory(dir); err != nil {
			return report, err
		}
	}
	report.OutputDir = outputDir

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		src := filepath.Join(dir, name)
		dst := filepath.Join(outputDir, OutputName(name))

		if _, err := os.Stat(dst); err == nil {
			p.Console.Debug("Already converted, skipping: %s", src)
			report.Skipped = append(report.Skipped, name)
			p.Stats.SkippedFiles++
			continue
		}

		if err := p.processFile(src, dst); err != nil {
			p.Console.Error("Failed to convert: %s: %v", name, err)
			report.Failed = append(report.Failed, &FileError{Path: src, Err: err})
			p.Stats.FailedFiles++
			continue
		}
		report.Converted = append(report.Converted, name)
		p.Stats.ConvertedFiles++

		if p.Delete {
			if err := os.Remove(src); err != nil {
				p.Console.Error("Error deleting original file %s: %v", src, err)
				continue
			}
			p.Console.Info("Original file deleted: %s", src)
			report.Deleted = append(report.Deleted, name)
			p.Stats.DeletedFiles++
		}
	}

	if !p.Delete {
		unprocessed, err := FindUnprocessed(dir, outputDir, p.VerifyOutput)
		if err != nil {
			p.Console.Error("Error checking for unprocessed files in %s: %v", dir, err)
			return report, nil
		}
		report.Unprocessed = unprocessed
		p.reportUnprocessed(unprocessed)
	}

	return report, nil
}

func (p *Processor) processFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	if err := p.Converter.Convert(src, dst); err != nil {
		return err
	}

	p.Stats.TotalOriginalSize += srcInfo.Size()
	if dstInfo, err := os.Stat(dst); err == nil {
		p.Stats.TotalConvertedSize += dstInfo.Size()
	}
	return nil
}

func (p *Processor) reportUnprocessed(unprocessed []string) {
	if len(unprocessed) == 0 {
		p.Console.Success("All supported files have been processed.")
		return
	}

	p.Console.Warn("The following files could not be converted:")
	for _, name := range unprocessed {
		p.Console.Log("  %s", name)
	}
}

// FindUnprocessed returns, sorted, the base names of supported files in
// srcDir that have no same-named file in outDir. Any extension in outDir
// counts unless verify is set, in which case only files detected as WebP do.
func FindUnprocessed(srcDir, outDir string, verify bool) ([]string, error) {
	sources, err := supportedFiles(srcDir)
	if err != nil {
		return nil, fmt.Errorf("error reading source directory: %w", err)
	}

	outputs, err := regularFiles(outDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading output directory: %w", err)
	}

	converted := make(map[string]bool, len(outputs))
	for _, name := range outputs {
		if verify && !isWebP(filepath.Join(outDir, name)) {
			continue
		}
		converted[baseName(name)] = true
	}

	pending := make(map[string]bool)
	for _, name := range sources {
		if base := baseName(name); !converted[base] {
			pending[base] = true
		}
	}

	unprocessed := make([]string, 0, len(pending))
	for base := range pending {
		unprocessed = append(unprocessed, base)
	}
	sort.Strings(unprocessed)
	return unprocessed, nil
}

func isWebP(path string) bool {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return mtype.Is("image/webp")
}

// CollectDirectories lists root and every directory below it, parents before
// children. The list is fixed before any processing so directories created
// during the run are not visited. Unreadable subtrees are reported through
// onError and skipped.
func CollectDirectories(root string, onError func(path string, err error)) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if onError != nil {
				onError(path, err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error while exploring directory: %w", err)
	}
	return dirs, nil
}

// ProcessTree runs ProcessDirectory on root and every directory beneath it.
func (p *Processor) ProcessTree(ctx context.Context, root string) error {
	dirs, err := CollectDirectories(root, func(path string, err error) {
		p.Console.Warn("Skipping %s: %v", path, err)
	})
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		p.Console.Info("Processing directory: %s", dir)
		if _, err := p.ProcessDirectory(ctx, dir); err != nil {
			if errors.Is(err, ErrInterrupted) {
				return err
			}
			p.Console.Error("%v", err)
		}
	}
	return nil
}

// ProcessPath is the single entry used by the command: one directory, or the
// whole tree when recursive is set.
func (p *Processor) ProcessPath(ctx context.Context, path string, recursive bool) error {
	if recursive {
		return p.ProcessTree(ctx, path)
	}
	_, err := p.ProcessDirectory(ctx, path)
	return err
}

func (p *Processor) displayResults() {
	stats := p.Stats

	var ratio float64
	if stats.TotalOriginalSize > 0 {
		ratio = float64(stats.TotalConvertedSize) / float64(stats.TotalOriginalSize) * 100
	}

	table := p.Console.NewTable([]string{"Metric", "Value"})
	table.AddRow("Directories", fmt.Sprintf("%d", stats.Directories))
	table.AddRow("Supported files", fmt.Sprintf("%d", stats.TotalFiles))
	table.AddRow("Converted", fmt.Sprintf("%d", stats.ConvertedFiles))
	table.AddRow("Skipped (already converted)", fmt.Sprintf("%d", stats.SkippedFiles))
	table.AddRow("Failed", fmt.Sprintf("%d", stats.FailedFiles))
	if p.Delete {
		table.AddRow("Originals deleted", fmt.Sprintf("%d", stats.DeletedFiles))
	}
	table.AddRow("Original size", fmt.Sprintf("%.2f MB", float64(stats.TotalOriginalSize)/1024/1024))
	table.AddRow("WebP size", fmt.Sprintf("%.2f MB", float64(stats.TotalConvertedSize)/1024/1024))
	table.AddRow("Size ratio", fmt.Sprintf("%.1f%%", ratio))

	p.Console.Info("Processing Summary:")
	table.Print()
}
