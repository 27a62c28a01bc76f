// Package corpus discovers markdown source files and stages them into a flat
// working directory for ingestion.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"grounder/internal/contextutil"
)

// ErrNoMarkdown is returned when a corpus scan finds no usable markdown files.
var ErrNoMarkdown = errors.New("no markdown files found")

// reservedSubstring marks non-documentation artifacts; files whose name
// contains it are excluded from the corpus.
const reservedSubstring = "mdb"

// stagingDirName is the flattened corpus directory under the working directory.
const stagingDirName = "preprocess"

// Document is a source file read into memory. Immutable once read; identified
// by its absolute source path.
type Document struct {
	Text       string
	SourcePath string
}

// Stage scans repoDir recursively for markdown files, excluding any whose
// filename contains the reserved substring, and copies them into a flat
// staging directory under workDir. Staged filenames are formed by replacing
// path separators with underscores, which avoids collisions while staying
// traceable to the origin. The staging directory is removed and recreated on
// every call so stale files never leak into a rebuild.
func Stage(ctx context.Context, repoDir, workDir string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	stagingDir := filepath.Join(workDir, stagingDirName)
	if _, err := os.Stat(stagingDir); err == nil {
		logger.WarnContext(ctx, "staging directory exists, removing and regenerating", "dir", stagingDir)
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	var sources []string
	err := filepath.Walk(repoDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		if strings.Contains(info.Name(), reservedSubstring) {
			return nil
		}
		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan corpus: %w", err)
	}

	if len(sources) == 0 {
		return "", fmt.Errorf("%w under %s", ErrNoMarkdown, repoDir)
	}

	for _, src := range sources {
		name := flattenName(src)
		data, err := os.ReadFile(src)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", src, err)
		}
		if err := os.WriteFile(filepath.Join(stagingDir, name), data, 0o644); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", src, err)
		}
	}

	logger.InfoContext(ctx, "staged corpus", "files", len(sources), "dir", stagingDir)
	return stagingDir, nil
}

// flattenName builds the staged filename from the original path, replacing
// path separators with underscores and trimming any leading dot.
func flattenName(path string) string {
	name := strings.ReplaceAll(filepath.ToSlash(path), "/", "_")
	name = strings.TrimPrefix(name, ".")
	name = strings.TrimPrefix(name, "_")
	return name
}

// LoadStaged reads every markdown file in the staging directory. Files with
// no meaningful content are skipped. Returned documents carry their absolute
// staged path as identity.
func LoadStaged(ctx context.Context, stagingDir string) ([]Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(data) <= 1 {
			logger.DebugContext(ctx, "skipping empty document", "path", path)
			continue
		}
		docs = append(docs, Document{Text: string(data), SourcePath: abs})
	}
	return docs, nil
}
