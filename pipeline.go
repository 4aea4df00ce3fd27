package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// outputDirName is the folder created under the destination that mirrors
// the source tree.
const outputDirName = "_output"

// Pipeline drives one batch run: it walks the effective file list, mirrors
// the directory structure under <dest>/_output, normalizes asset files
// through the scratch scene and copies everything else verbatim. Warnings
// are soft and land in the run log; I/O and geometry failures stop the run
// with whatever output was already written left in place.
type Pipeline struct {
	cfg   *Config
	scene *Scene

	logFile  *os.File
	warnings int

	// Progress, when set, is called after every file so the host UI can
	// refresh. The pipeline itself has no concurrent work; this is a
	// cooperative checkpoint, not a suspension point.
	Progress ProgressFunc
}

func NewPipeline(cfg *Config) *Pipeline {
	return &Pipeline{cfg: cfg, scene: NewScene()}
}

// Validate runs the pre-flight checks: a destination must be set and
// writable, and the source subtree must contain at least one asset file.
// No file is touched when any of these fail.
func (p *Pipeline) Validate() error {
	if p.cfg.Dest == "" {
		return ErrEmptyDestination
	}
	probe, err := os.CreateTemp(p.cfg.Dest, ".meshgrid-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDestinationNotWritable, p.cfg.Dest)
	}
	probe.Close()
	os.Remove(probe.Name())

	if !hasAssetFile(p.cfg.SourceRoot, p.cfg.AssetExt) {
		return fmt.Errorf("%w: no %s file under %s", ErrNoAssetFiles, p.cfg.AssetExt, p.cfg.SourceRoot)
	}
	return nil
}

// OutputExists reports whether the destination already carries an _output
// folder from an earlier run. Duplicate files will be overwritten.
func (p *Pipeline) OutputExists() bool {
	_, err := os.Stat(filepath.Join(p.cfg.Dest, outputDirName))
	return err == nil
}

// hasAssetFile reports whether any file under root carries the asset
// extension.
func hasAssetFile(root, ext string) bool {
	found := false
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// Run processes the given files in order. Cancellation is honored only
// between files; the file in flight always runs to completion.
func (p *Pipeline) Run(ctx context.Context, files []string) (*RunSummary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	outBase := filepath.Join(p.cfg.Dest, outputDirName)
	if err := os.MkdirAll(outBase, 0755); err != nil {
		return nil, fmt.Errorf("creating output folder: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(outBase, "log.txt"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	p.logFile = logFile
	defer logFile.Close()

	start := time.Now()
	p.warnings = 0
	p.writeLog(fmt.Sprintf("%s: Processing of %d files.", start.Format(time.ANSIC), len(files)))
	p.writeLog("")

	summary := &RunSummary{Total: len(files)}
	for _, f := range files {
		select {
		case <-ctx.Done():
			summary.Warnings = p.warnings
			summary.Elapsed = time.Since(start)
			return summary, ctx.Err()
		default:
		}

		rel, err := filepath.Rel(p.cfg.SourceRoot, f)
		if err != nil {
			return summary, fmt.Errorf("resolving %s against source root: %w", f, err)
		}
		outPath := filepath.Join(outBase, rel)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return summary, fmt.Errorf("creating %s: %w", filepath.Dir(outPath), err)
		}

		if strings.HasSuffix(f, p.cfg.AssetExt) {
			err = p.processAsset(f, outPath)
		} else {
			err = p.copyVerbatim(f, outPath)
		}
		if err != nil {
			summary.Warnings = p.warnings
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		summary.Processed++
		if p.Progress != nil {
			p.Progress(summary.Processed, summary.Total, p.warnings)
		}
	}

	summary.Warnings = p.warnings
	summary.Elapsed = time.Since(start)
	p.writeLog("")
	p.writeLog(summary.String())
	return summary, nil
}

// processAsset loads one asset file into the scratch scene, runs the
// configured passes over its objects and exports the result to outPath.
// The scene is cleared of the file's objects before returning, so the next
// file starts from a clean slate.
func (p *Pipeline) processAsset(src, outPath string) error {
	objs, err := p.scene.LoadAsset(src)
	if err != nil {
		return err
	}
	defer func() { p.scene.Remove(objs) }()

	ext := filepath.Ext(outPath)
	base := strings.TrimSuffix(outPath, ext)

	if p.cfg.Combine && len(objs) > 1 {
		merged := p.scene.Combine(objs, filepath.Base(base))
		objs = []*SceneObject{merged}
	}

	if p.cfg.ScalingEnabled {
		for _, o := range objs {
			factors, warnings, err := ComputeScale(o.BoundingBox(), p.cfg)
			if err != nil {
				return fmt.Errorf("%s in file %s: %w", o.Name, src, err)
			}
			for _, w := range warnings {
				p.warn(fmt.Sprintf("%s in file %s %s.", o.Name, src, w))
			}
			o.ApplyRelativeScale(factors)
		}
	}

	if p.cfg.PivotEnabled {
		for _, o := range objs {
			o.BakePivot(ComputePivot(o.BoundingBox(), p.cfg.PivotPlacement))
		}
	}

	if p.cfg.OwnFilePerObject && !p.cfg.Combine {
		for _, o := range objs {
			path := base + "_" + o.Name + ext
			p.warnIfOverwriting(path)
			if err := p.scene.Export([]*SceneObject{o}, path); err != nil {
				return err
			}
		}
		return nil
	}

	p.warnIfOverwriting(outPath)
	return p.scene.Export(objs, outPath)
}

// copyVerbatim copies a non-asset file byte for byte, keeping its mode and
// modification time.
func (p *Pipeline) copyVerbatim(src, dst string) error {
	p.warnIfOverwriting(dst)

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("setting times on %s: %w", dst, err)
	}
	return nil
}

func (p *Pipeline) warnIfOverwriting(path string) {
	if _, err := os.Stat(path); err == nil {
		p.warn(fmt.Sprintf("%s already existed. Original contents overridden.", path))
	}
}

func (p *Pipeline) warn(msg string) {
	p.warnings++
	p.writeLog("-- WARNING: " + msg)
}

func (p *Pipeline) writeLog(line string) {
	if p.logFile == nil {
		return
	}
	fmt.Fprintln(p.logFile, line)
}
