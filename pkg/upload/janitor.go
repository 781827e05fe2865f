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
	"context"
	"os"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/metrics"
)

// Sweep removes sessions idle for longer than the TTL, together with their
// part files, and part files left behind by earlier runs. Sessions that are
// mid-write are skipped. It returns the number of sessions removed.
func (r *Reassembler) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for name, s := range r.sessions {
		if !r.expired(s, now) || !s.mu.TryLock() {
			continue
		}
		r.removeLocked(s)
		s.mu.Unlock()
		removed++
		metrics.RecordSessionExpired()
		log.Info("expired idle upload session for %s", name)
	}

	r.sweepOrphansLocked(now)
	return removed
}

func (r *Reassembler) sweepOrphansLocked(now time.Time) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		log.Warn("failed to scan upload dir for stale parts: %v", err)
		return
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), PartSuffix) {
			continue
		}
		if _, live := r.sessions[strings.TrimSuffix(entry.Name(), PartSuffix)]; live {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= r.ttl {
			continue
		}
		if err := os.Remove(r.partPath(strings.TrimSuffix(entry.Name(), PartSuffix))); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove stale %s: %v", entry.Name(), err)
			continue
		}
		log.Info("removed stale part file %s", entry.Name())
	}
}

// RunJanitor sweeps every interval until ctx is done.
func (r *Reassembler) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	wait.UntilWithContext(ctx, func(context.Context) { r.Sweep() }, interval)
}
