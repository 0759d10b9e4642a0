// Package batch turns a directory of prompt, image and markup files into
// figures, running several model calls at once.
package batch

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind is what a batch input file holds.
type Kind string

const (
	// KindPrompt is a plain-text description of the figure.
	KindPrompt Kind = "prompt"
	// KindImage is a picture of a diagram to reconstruct.
	KindImage Kind = "image"
	// KindMarkup is existing TikZ code to preview.
	KindMarkup Kind = "markup"
)

// Job is one input file.
type Job struct {
	Path    string // Path on disk.
	RelPath string // Slash-separated path relative to the batch root.
	Kind    Kind
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// KindOf classifies a file by its extension.
func KindOf(name string) Kind {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case imageExts[ext]:
		return KindImage
	case ext == ".tex" || ext == ".tikz":
		return KindMarkup
	default:
		return KindPrompt
	}
}

// Collect expands doublestar patterns (with ** support) relative to root and
// returns the matching files sorted by path. Files matching any exclude
// pattern are dropped.
func Collect(root string, patterns, exclude []string) ([]Job, error) {
	for _, p := range append(append([]string{}, patterns...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("batch: invalid pattern %q", p)
		}
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var jobs []Job
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("batch: expanding %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] || excluded(rel, exclude) {
				continue
			}
			seen[rel] = true
			jobs = append(jobs, Job{
				Path:    filepath.Join(root, filepath.FromSlash(rel)),
				RelPath: rel,
				Kind:    KindOf(rel),
			})
		}
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RelPath < jobs[j].RelPath })
	return jobs, nil
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, path.Base(rel)); ok {
			return true
		}
	}
	return false
}
