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

// Package browse lists and packages the shared directory tree.
package browse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/metrics"
	"github.com/lanvault/lanvault/pkg/pathguard"
	"github.com/lanvault/lanvault/pkg/util/glob"
)

// Entry is one child of a listed directory.
type Entry struct {
	Name    string    `json:"name"`
	IsDir   bool      `json:"is_dir"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

// Listing is the content of one directory. Parent is nil only at the root.
type Listing struct {
	Current string  `json:"current"`
	Parent  *string `json:"parent"`
	Entries []Entry `json:"entries"`
}

// Options configures a Browser.
type Options struct {
	Root     *pathguard.Root
	Hide     *glob.Matcher
	Activity activity.Recorder
}

// Browser serves read-only views of a directory tree.
type Browser struct {
	root   *pathguard.Root
	hidden *glob.Matcher
	rec    activity.Recorder
}

// New returns a Browser over opts.Root.
func New(opts Options) *Browser {
	return &Browser{root: opts.Root, hidden: opts.Hide, rec: opts.Activity}
}

// Root returns the shared root.
func (b *Browser) Root() *pathguard.Root {
	return b.root
}

// List returns the immediate children of rel sorted by name.
func (b *Browser) List(rel string) (*Listing, error) {
	dir, err := b.ResolveDir(rel)
	if err != nil {
		return nil, err
	}

	children, err := os.ReadDir(dir.Abs())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayPath(dir), err)
	}

	entries := make([]Entry, 0, len(children))
	for _, child := range children {
		childRel := path.Join(dir.Rel(), child.Name())
		if b.hidden.Match(childRel) {
			continue
		}
		// Stat follows symlinks so linked directories list as directories.
		info, err := os.Stat(filepath.Join(dir.Abs(), child.Name()))
		if err != nil {
			if info, err = child.Info(); err != nil {
				continue
			}
		}
		entry := Entry{
			Name:    child.Name(),
			IsDir:   info.IsDir(),
			Path:    childRel,
			ModTime: info.ModTime(),
		}
		if !entry.IsDir {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	listing := &Listing{Current: dir.Rel(), Entries: entries}
	if !dir.IsRoot() {
		parent := path.Dir(dir.Rel())
		if parent == "." {
			parent = ""
		}
		listing.Parent = &parent
	}
	return listing, nil
}

// ResolveDir validates rel as an existing, visible directory.
func (b *Browser) ResolveDir(rel string) (pathguard.Path, error) {
	p, _, err := b.root.StatDir(rel)
	if err != nil {
		return pathguard.Path{}, err
	}
	if b.isHidden(p.Rel()) {
		return pathguard.Path{}, pathguard.ErrNotFound
	}
	return p, nil
}

// OpenFile opens rel for download. The caller closes the file.
func (b *Browser) OpenFile(rel string) (*os.File, os.FileInfo, pathguard.Path, error) {
	p, _, err := b.root.StatFile(rel)
	if err != nil {
		return nil, nil, pathguard.Path{}, err
	}
	if b.isHidden(p.Rel()) {
		return nil, nil, pathguard.Path{}, pathguard.ErrNotFound
	}

	f, err := os.Open(p.Abs())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, pathguard.Path{}, pathguard.ErrNotFound
		}
		return nil, nil, pathguard.Path{}, fmt.Errorf("open %s: %w", p.Rel(), err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, pathguard.Path{}, fmt.Errorf("stat %s: %w", p.Rel(), err)
	}
	return f, info, p, nil
}

// FileSent records a finished single-file download.
func (b *Browser) FileSent(p pathguard.Path, bytes int64) {
	metrics.RecordDownload(metrics.KindFile, bytes, true)
	activity.Recordf(b.rec, "Downloaded file: %s", displayPath(p))
}

// isHidden reports whether rel or any of its ancestors matches a hide pattern.
func (b *Browser) isHidden(rel string) bool {
	if rel == "" {
		return false
	}
	for prefix := rel; prefix != "." && prefix != ""; prefix = path.Dir(prefix) {
		if b.hidden.Match(prefix) {
			return true
		}
	}
	return false
}

func displayPath(p pathguard.Path) string {
	if p.IsRoot() {
		return "/"
	}
	return p.Rel()
}
