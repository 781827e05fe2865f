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

package browse

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/metrics"
	"github.com/lanvault/lanvault/pkg/pathguard"
)

// ZipStats summarizes a streamed archive.
type ZipStats struct {
	Files   int
	Bytes   int64
	Skipped int
}

// ZipName is the attachment name for an archive of dir.
func ZipName(dir pathguard.Path) string {
	return dir.Base() + ".zip"
}

// Archive validates rel as a directory and streams it to w.
func (b *Browser) Archive(ctx context.Context, rel string, w io.Writer) (ZipStats, error) {
	dir, err := b.ResolveDir(rel)
	if err != nil {
		return ZipStats{}, err
	}
	return b.StreamZip(ctx, dir, w)
}

// StreamZip writes every regular file below dir to w as a deflated zip, one
// entry at a time. Entry names are slash paths relative to dir and no
// directory entries are written. On error the archive is left without its
// central directory so clients see it as truncated.
func (b *Browser) StreamZip(ctx context.Context, dir pathguard.Path, w io.Writer) (ZipStats, error) {
	var stats ZipStats

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	err := filepath.WalkDir(dir.Abs(), func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p != dir.Abs() && errors.Is(err, fs.ErrNotExist) {
				log.Warn("skipping %s: vanished during zip", p)
				stats.Skipped++
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(dir.Abs(), p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if b.hidden.Match(path.Join(dir.Rel(), rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		source := p
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, ok := b.followLink(p)
			if !ok {
				stats.Skipped++
				return nil
			}
			source = target
		case !d.Type().IsRegular():
			return nil
		}

		n, err := addZipEntry(zw, source, rel)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("skipping %s: vanished during zip", p)
			stats.Skipped++
			return nil
		}
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if err != nil {
		log.Error("zip of %s aborted after %d files: %v", displayPath(dir), stats.Files, err)
		metrics.RecordDownload(metrics.KindFolder, stats.Bytes, false)
		return stats, fmt.Errorf("zip %s: %w", displayPath(dir), err)
	}

	if err := zw.Close(); err != nil {
		metrics.RecordDownload(metrics.KindFolder, stats.Bytes, false)
		return stats, fmt.Errorf("finish zip %s: %w", displayPath(dir), err)
	}

	metrics.RecordDownload(metrics.KindFolder, stats.Bytes, true)
	log.Infow("folder download complete", "path", displayPath(dir), "files", stats.Files, "bytes", stats.Bytes, "skipped", stats.Skipped)
	activity.Recordf(b.rec, "Downloaded folder: %s", displayPath(dir))
	return stats, nil
}

// followLink returns the target of a symlinked file when it stays inside the
// root. Linked directories are not descended.
func (b *Browser) followLink(p string) (string, bool) {
	target, err := filepath.EvalSymlinks(p)
	if err != nil {
		log.Warn("skipping %s: %v", p, err)
		return "", false
	}
	if !b.root.Contains(target) {
		log.Warn("skipping %s: link leaves the shared directory", p)
		return "", false
	}
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return target, true
}

func addZipEntry(zw *zip.Writer, source, name string) (int64, error) {
	f, err := os.Open(source)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = name
	header.Method = zip.Deflate

	wr, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(wr, f)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", name, err)
	}
	return n, nil
}
