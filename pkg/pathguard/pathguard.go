// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pathguard confines untrusted relative paths to a fixed root
// directory. A Path can only be obtained from Root.Resolve, so code holding
// one knows it points inside the root.
package pathguard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lanvault/lanvault/pkg/log"
)

var (
	// ErrForbidden reports a path that resolves outside the root.
	ErrForbidden = errors.New("forbidden path")
	// ErrNotFound reports a path inside the root that does not exist or has
	// the wrong type for the operation.
	ErrNotFound = errors.New("not found")
)

// Root is an absolute, symlink-free directory. It never changes after New.
type Root struct {
	dir    string
	prefix string
}

// New canonicalizes dir and returns a Root for it. The directory must exist.
func New(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", dir)
	}

	prefix := real
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return &Root{dir: real, prefix: prefix}, nil
}

// Dir returns the canonical absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Contains reports whether the absolute path abs is the root or lies below it.
// abs must already be canonical.
func (r *Root) Contains(abs string) bool {
	return abs == r.dir || strings.HasPrefix(abs, r.prefix)
}

// Path is a location validated against a Root.
type Path struct {
	abs string
	rel string
}

// Abs returns the canonical absolute filesystem path.
func (p Path) Abs() string { return p.abs }

// Rel returns the cleaned slash-separated path relative to the root; the root
// itself is "".
func (p Path) Rel() string { return p.rel }

// IsRoot reports whether p is the root directory.
func (p Path) IsRoot() bool { return p.rel == "" }

// Base returns the last element of the path, or the root directory's own name.
func (p Path) Base() string { return filepath.Base(p.abs) }

// Resolve validates rel and returns the Path it names. The target does not
// need to exist; callers decide whether absence is an error.
func (r *Root) Resolve(rel string) (Path, error) {
	p, err := r.resolve(rel)
	if errors.Is(err, ErrForbidden) {
		log.Warnw("rejected path outside root", "path", rel)
	}
	return p, err
}

func (r *Root) resolve(rel string) (Path, error) {
	if strings.ContainsRune(rel, 0) {
		return Path{}, ErrForbidden
	}
	native := filepath.FromSlash(rel)
	if filepath.IsAbs(native) || filepath.VolumeName(native) != "" || strings.HasPrefix(rel, "/") {
		return Path{}, ErrForbidden
	}

	joined := filepath.Join(r.dir, native)
	if !r.Contains(joined) {
		return Path{}, ErrForbidden
	}

	canonical, err := r.canonicalize(joined)
	if err != nil {
		return Path{}, err
	}
	if !r.Contains(canonical) {
		return Path{}, ErrForbidden
	}

	cleaned, err := filepath.Rel(r.dir, joined)
	if err != nil {
		return Path{}, ErrForbidden
	}
	cleaned = filepath.ToSlash(cleaned)
	if cleaned == "." {
		cleaned = ""
	}
	return Path{abs: canonical, rel: cleaned}, nil
}

// canonicalize resolves symlinks in the longest existing prefix of p and
// re-appends the missing tail.
func (r *Root) canonicalize(p string) (string, error) {
	real, err := filepath.EvalSymlinks(p)
	if err == nil {
		return real, nil
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return "", fmt.Errorf("resolve %s: %w", filepath.Base(p), err)
	}

	// a dangling symlink could be created through later, so its target
	// cannot be trusted
	if info, lerr := os.Lstat(p); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
		return "", ErrForbidden
	}

	parent := filepath.Dir(p)
	if parent == p || p == r.dir {
		return p, nil
	}
	realParent, err := r.canonicalize(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(realParent, filepath.Base(p)), nil
}

// StatDir resolves rel and requires it to be an existing directory.
func (r *Root) StatDir(rel string) (Path, os.FileInfo, error) {
	return r.stat(rel, true)
}

// StatFile resolves rel and requires it to be an existing regular file.
func (r *Root) StatFile(rel string) (Path, os.FileInfo, error) {
	return r.stat(rel, false)
}

func (r *Root) stat(rel string, wantDir bool) (Path, os.FileInfo, error) {
	p, err := r.Resolve(rel)
	if err != nil {
		return Path{}, nil, err
	}
	info, err := os.Stat(p.abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return Path{}, nil, ErrNotFound
		}
		return Path{}, nil, fmt.Errorf("stat %s: %w", p.rel, err)
	}
	if wantDir != info.IsDir() || (!wantDir && !info.Mode().IsRegular()) {
		return Path{}, nil, ErrNotFound
	}
	return p, info, nil
}
