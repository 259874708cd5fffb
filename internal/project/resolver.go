// Package project locates the root of a tasq-managed project.
//
// A directory is a project root when it directly contains the marker
// directory (".tasq" by default). The resolver only checks for that
// directory; it never reads anything inside it.
package project

import (
	"os"
	"path/filepath"

	"github.com/tasq/tasqmcp/internal/core"
)

const (
	DefaultMarker = ".tasq"

	// AutoDetect is the project_dir value that requests an upward search
	// from the working directory.
	AutoDetect = "."
)

// FindRoot walks from start up to the filesystem root (inclusive) and returns
// the first directory that directly contains marker. An empty start means the
// current working directory.
func FindRoot(start, marker string) (string, bool) {
	if start == "" {
		start = "."
	}
	current, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if hasMarker(current, marker) {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// Resolver applies the project_dir policy used by every tool handler.
type Resolver struct {
	Marker string
	Getwd  func() (string, error)
}

func NewResolver(marker string) *Resolver {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Resolver{Marker: marker, Getwd: os.Getwd}
}

// Resolve returns the project directory for a caller-supplied hint.
//
// AutoDetect searches upward from the working directory and returns an
// absolute path. Any other value is an explicit assertion: the marker must sit
// directly under it, and the path is returned exactly as given.
func (r *Resolver) Resolve(projectDir string) (string, error) {
	if projectDir == AutoDetect {
		wd, err := r.getwd()
		if err != nil {
			return "", core.ProjectNotFound("No %s directory found (working directory unavailable: %v). Please run 'tasq init' to initialize a project, or specify an explicit project_dir.", r.Marker, err)
		}
		root, ok := FindRoot(wd, r.Marker)
		if !ok {
			return "", core.ProjectNotFound("No %s directory found. Please run 'tasq init' to initialize a project, or specify an explicit project_dir.", r.Marker)
		}
		return root, nil
	}

	if !hasMarker(projectDir, r.Marker) {
		return "", core.ProjectNotFound("No %s directory found in %s. Please run 'tasq init' in that directory first.", r.Marker, projectDir)
	}
	return projectDir, nil
}

// WorkingDir returns the process working directory through the resolver's
// Getwd hook.
func (r *Resolver) WorkingDir() (string, error) {
	return r.getwd()
}

// HasMarker reports whether dir directly contains the resolver's marker.
func (r *Resolver) HasMarker(dir string) bool {
	return hasMarker(dir, r.Marker)
}

func (r *Resolver) getwd() (string, error) {
	if r.Getwd == nil {
		return os.Getwd()
	}
	return r.Getwd()
}

func hasMarker(dir, marker string) bool {
	info, err := os.Stat(filepath.Join(dir, marker))
	return err == nil && info.IsDir()
}
