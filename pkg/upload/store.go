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

package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/metrics"
	"github.com/lanvault/lanvault/pkg/pathguard"
	"github.com/lanvault/lanvault/pkg/util/glob"
)

// SavedFile is a completed upload.
type SavedFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Store exposes the completed files directly under the upload directory.
// Part files and hidden names are invisible through it.
type Store struct {
	root   *pathguard.Root
	hidden *glob.Matcher
	rec    activity.Recorder
}

// NewStore returns a Store over root.
func NewStore(root *pathguard.Root, hidden *glob.Matcher, rec activity.Recorder) *Store {
	return &Store{root: root, hidden: hidden, rec: rec}
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.root.Dir()
}

// List returns the saved files sorted by name.
func (s *Store) List() ([]SavedFile, error) {
	entries, err := os.ReadDir(s.root.Dir())
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	files := make([]SavedFile, 0, len(entries))
	for _, entry := range entries {
		if !s.visible(entry.Name()) || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, SavedFile{Name: entry.Name(), Size: info.Size(), ModifiedAt: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open returns the saved file called name for reading. Traversal attempts
// fail with pathguard.ErrForbidden; anything that is not a visible regular
// file directly in the upload directory fails with pathguard.ErrNotFound.
func (s *Store) Open(name string) (*os.File, os.FileInfo, error) {
	p, info, err := s.root.StatFile(name)
	if err != nil {
		return nil, nil, err
	}
	if strings.Contains(p.Rel(), "/") || !s.visible(p.Rel()) {
		return nil, nil, pathguard.ErrNotFound
	}

	f, err := os.Open(p.Abs())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, pathguard.ErrNotFound
		}
		return nil, nil, fmt.Errorf("open %s: %w", p.Rel(), err)
	}
	return f, info, nil
}

// Delete removes the saved file called name. A missing name, a directory or
// an in-flight part file is left alone and reported as not deleted.
func (s *Store) Delete(name string) (bool, error) {
	p, _, err := s.root.StatFile(name)
	if errors.Is(err, pathguard.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if strings.Contains(p.Rel(), "/") || !s.visible(p.Rel()) {
		return false, nil
	}

	// remove the directory entry itself, not a symlink target
	if err := os.Remove(filepath.Join(s.root.Dir(), p.Rel())); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove %s: %w", p.Rel(), err)
	}

	metrics.RecordDelete()
	log.Info("deleted %s", p.Rel())
	activity.Recordf(s.rec, "Deleted: %s", p.Rel())
	return true, nil
}

func (s *Store) visible(name string) bool {
	return name != "" && !strings.HasSuffix(name, PartSuffix) && !s.hidden.Match(name)
}
