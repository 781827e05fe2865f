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

package safego

import (
	"context"
	"net/http"
	"runtime"
	"sync"

	runtimeutil "k8s.io/apimachinery/pkg/util/runtime"

	"github.com/lanvault/lanvault/pkg/log"
)

func init() {
	runtimeutil.ReallyCrash = false
	runtimeutil.PanicHandlers = []func(context.Context, any){logPanic}
}

func logPanic(_ context.Context, r any) {
	if r == http.ErrAbortHandler { // nolint:errorlint
		return
	}

	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	log.Error("observed a panic: %v\n%s", r, stacktrace)
}

// Go runs f on a new goroutine; a panic in f is logged instead of
// crashing the process.
func Go(f func()) {
	go func() {
		defer runtimeutil.HandleCrash()

		f()
	}()
}

// Group tracks goroutines started with Go so the caller can wait for them.
type Group struct {
	wg sync.WaitGroup
}

// Go starts f like the package-level Go and registers it with the group.
func (g *Group) Go(f func()) {
	g.wg.Add(1)
	Go(func() {
		defer g.wg.Done()
		f()
	})
}

// Wait blocks until every goroutine started through the group returns.
func (g *Group) Wait() {
	g.wg.Wait()
}
