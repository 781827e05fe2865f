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

// Package upload reassembles sequentially numbered chunks into files in the
// upload directory and manages the files saved there.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/metrics"
)

var (
	// ErrInvalidName reports a file name that cannot be stored.
	ErrInvalidName = errors.New("invalid file name")
	// ErrInvalidChunk reports chunk metadata that is inconsistent by itself
	// or with the running session.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrOutOfOrder reports a chunk whose index is not the next expected one.
	ErrOutOfOrder = errors.New("chunk out of order")
	// ErrBusy reports a chunk for a name another writer currently owns.
	ErrBusy = errors.New("upload busy")
	// ErrIntegrity reports a completed upload that does not match the size or
	// digest the client declared.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrNoSession reports a status query for a name with no live upload.
	ErrNoSession = errors.New("no upload session")
)

// Chunk is one piece of an upload.
type Chunk struct {
	Filename string
	Index    int
	Total    int
	Data     io.Reader
	// Size is the expected final byte count, or -1 when unknown.
	Size int64
	// SHA256 is the expected hex digest of the whole file, or "".
	SHA256 string
}

// Ack acknowledges a durably written chunk.
type Ack struct {
	Name     string `json:"name"`
	Index    int    `json:"index"`
	Received int64  `json:"received"`
	Next     int    `json:"next"`
	Complete bool   `json:"complete"`
}

// Progress describes a live upload session.
type Progress struct {
	Name      string    `json:"name"`
	Next      int       `json:"next"`
	Total     int       `json:"total"`
	Received  int64     `json:"received"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Options configures a Reassembler.
type Options struct {
	// Dir is the existing upload directory.
	Dir string
	// SessionTTL is how long an idle session keeps its name. Zero disables
	// expiry.
	SessionTTL time.Duration
	Activity   activity.Recorder
}

// session is the registry entry for one in-flight upload. mu is held for
// the whole append of a chunk. total, next, written and updated change only
// while both mu and Reassembler.mu are held, so either lock is enough to
// read them.
type session struct {
	mu      sync.Mutex
	name    string
	total   int
	next    int
	written int64
	updated time.Time
}

// Reassembler appends chunks to <name>.part files and publishes them under
// their final name once the last chunk arrives.
type Reassembler struct {
	dir string
	ttl time.Duration
	rec activity.Recorder
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// New returns a Reassembler writing into opts.Dir.
func New(opts Options) (*Reassembler, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("upload dir %s is not a directory", opts.Dir)
	}
	return &Reassembler{
		dir:      opts.Dir,
		ttl:      opts.SessionTTL,
		rec:      opts.Activity,
		now:      time.Now,
		sessions: make(map[string]*session),
	}, nil
}

// Append writes c to its session and, for the last chunk, verifies and
// publishes the file. The chunk is on stable storage when Append returns
// without error.
func (r *Reassembler) Append(ctx context.Context, c Chunk) (Ack, error) {
	ack, err := r.append(ctx, c)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidChunk),
		errors.Is(err, ErrOutOfOrder), errors.Is(err, ErrBusy), errors.Is(err, ErrIntegrity):
		metrics.RecordChunk("rejected", 0)
		log.Warnw("chunk rejected", "file", c.Filename, "index", c.Index, "total", c.Total, "error", err)
	default:
		metrics.RecordChunk("error", 0)
		log.Error("chunk %d/%d of %q failed: %v", c.Index, c.Total, c.Filename, err)
	}
	return ack, err
}

func (r *Reassembler) append(ctx context.Context, c Chunk) (Ack, error) {
	name, err := SanitizeName(c.Filename)
	if err != nil {
		return Ack{}, err
	}
	if c.Total < 1 || c.Index < 0 || c.Index >= c.Total {
		return Ack{}, fmt.Errorf("%w: index %d with total %d", ErrInvalidChunk, c.Index, c.Total)
	}
	if c.Data == nil {
		return Ack{}, fmt.Errorf("%w: missing data", ErrInvalidChunk)
	}
	if c.Index == 0 {
		if info, err := os.Lstat(filepath.Join(r.dir, name)); err == nil && info.IsDir() {
			return Ack{}, fmt.Errorf("%w: %s is a directory", ErrInvalidName, name)
		}
	}
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}

	s, err := r.acquire(name, c)
	if err != nil {
		return Ack{}, err
	}
	defer s.mu.Unlock()

	part := r.partPath(name)
	prev := s.written
	n, err := appendChunk(part, c.Data, prev, c.Index == 0)
	if err != nil {
		return Ack{}, fmt.Errorf("append chunk %d of %s: %w", c.Index, name, err)
	}
	metrics.RecordChunk("ok", n)

	if c.Index < c.Total-1 {
		r.advance(s, n)
		return Ack{Name: name, Index: c.Index, Received: prev + n, Next: c.Index + 1}, nil
	}

	if err := verify(part, prev+n, c); err != nil {
		r.discard(s)
		return Ack{}, err
	}
	if err := publish(part, filepath.Join(r.dir, name)); err != nil {
		// leave the session one chunk back so the client can retry the last chunk
		if terr := os.Truncate(part, prev); terr != nil {
			log.Error("rollback of %s failed: %v", part, terr)
			r.discard(s)
		}
		return Ack{}, fmt.Errorf("publish %s: %w", name, err)
	}

	r.finish(s)
	syncDir(r.dir)
	metrics.RecordUploadComplete()
	log.Infow("upload complete", "file", name, "bytes", prev+n, "chunks", c.Total)
	activity.Recordf(r.rec, "Saved: %s", name)

	return Ack{Name: name, Index: c.Index, Received: prev + n, Next: c.Total, Complete: true}, nil
}

// acquire returns the session for name locked for writing, creating it for
// chunk 0 and enforcing ordering for everything else.
func (r *Reassembler) acquire(name string, c Chunk) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s, ok := r.sessions[name]
	if ok && r.expired(s, now) && s.mu.TryLock() {
		log.Info("upload session for %s expired, replacing it", name)
		r.removeLocked(s)
		s.mu.Unlock()
		metrics.RecordSessionExpired()
		ok = false
	}

	if c.Index == 0 {
		if !ok {
			s = &session{name: name}
			r.sessions[name] = s
		}
		if !s.mu.TryLock() {
			return nil, fmt.Errorf("%w: %s is being written", ErrBusy, name)
		}
		if s.next > 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: an upload of %s is in progress at chunk %d", ErrBusy, name, s.next)
		}
		s.total = c.Total
		s.written = 0
		s.updated = now
		metrics.SetActiveSessions(len(r.sessions))
		return s, nil
	}

	if !ok {
		return nil, fmt.Errorf("%w: no upload of %s in progress, expected chunk 0", ErrOutOfOrder, name)
	}
	if !s.mu.TryLock() {
		return nil, fmt.Errorf("%w: %s is being written", ErrBusy, name)
	}
	if c.Total != s.total {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: total changed from %d to %d", ErrInvalidChunk, s.total, c.Total)
	}
	if c.Index != s.next {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: expected chunk %d, got %d", ErrOutOfOrder, s.next, c.Index)
	}
	s.updated = now
	return s, nil
}

func (r *Reassembler) advance(s *session, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.next++
	s.written += n
	s.updated = r.now()
}

func (r *Reassembler) finish(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.next = s.total
	if r.sessions[s.name] == s {
		delete(r.sessions, s.name)
	}
	metrics.SetActiveSessions(len(r.sessions))
}

// discard drops the session and its temporary file. Caller holds s.mu.
func (r *Reassembler) discard(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(s)
}

// removeLocked requires both r.mu and s.mu.
func (r *Reassembler) removeLocked(s *session) {
	if r.sessions[s.name] == s {
		delete(r.sessions, s.name)
	}
	if err := os.Remove(r.partPath(s.name)); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove %s%s: %v", s.name, PartSuffix, err)
	}
	metrics.SetActiveSessions(len(r.sessions))
}

func (r *Reassembler) expired(s *session, now time.Time) bool {
	return r.ttl > 0 && now.Sub(s.updated) > r.ttl
}

func (r *Reassembler) partPath(name string) string {
	return filepath.Join(r.dir, name+PartSuffix)
}

// Status reports the live session for filename.
func (r *Reassembler) Status(filename string) (Progress, error) {
	name, err := SanitizeName(filename)
	if err != nil {
		return Progress{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[name]
	if !ok || r.expired(s, r.now()) {
		return Progress{}, fmt.Errorf("%w: %s", ErrNoSession, name)
	}
	return Progress{
		Name:      name,
		Next:      s.next,
		Total:     s.total,
		Received:  s.written,
		UpdatedAt: s.updated,
	}, nil
}

// Active returns the number of live sessions.
func (r *Reassembler) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// appendChunk appends data to path and fsyncs it. On failure the file is cut
// back to prev bytes so the same chunk can be sent again.
func appendChunk(path string, data io.Reader, prev int64, first bool) (int64, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if first {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if terr := os.Truncate(path, prev); terr != nil {
			log.Error("truncate %s back to %d bytes: %v", filepath.Base(path), prev, terr)
		}
		return 0, err
	}
	return n, nil
}

func verify(path string, written int64, c Chunk) error {
	if c.Size >= 0 && written != c.Size {
		return fmt.Errorf("%w: received %d bytes, expected %d", ErrIntegrity, written, c.Size)
	}
	if c.SHA256 == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, c.SHA256) {
		return fmt.Errorf("%w: sha256 %s does not match declared %s", ErrIntegrity, got, c.SHA256)
	}
	return nil
}

// publish moves the finished part file over the final name.
func publish(part, final string) error {
	err := os.Rename(part, final)
	if err == nil {
		return nil
	}
	// some platforms refuse to rename over an existing file
	if info, serr := os.Lstat(final); serr != nil || info.IsDir() {
		return err
	}
	if rerr := os.Remove(final); rerr != nil {
		return err
	}
	return os.Rename(part, final)
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
