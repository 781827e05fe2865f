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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/browse"
	"github.com/lanvault/lanvault/pkg/flag"
	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/netinfo"
	"github.com/lanvault/lanvault/pkg/pathguard"
	"github.com/lanvault/lanvault/pkg/upload"
	"github.com/lanvault/lanvault/pkg/util/glob"
	"github.com/lanvault/lanvault/pkg/util/safego"
	"github.com/lanvault/lanvault/pkg/web"
	"github.com/lanvault/lanvault/pkg/web/controller"
)

// defaultChunkSize matches the slice size of the bundled upload page.
const defaultChunkSize = 100 << 20

// main starts the upload and browse services.
func main() {
	flag.InitFlags()

	log.SetLevel(flag.ServerLogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		log.Fatal("lanvault stopped: %v", err)
	}
}

func run(ctx context.Context) error {
	hidden, err := glob.NewMatcher(flag.Hide)
	if err != nil {
		return err
	}
	feed := activity.New()

	var servers []*http.Server
	if flag.UploadDir != "" {
		srv, err := newUploadServer(ctx, feed, hidden)
		if err != nil {
			return err
		}
		servers = append(servers, srv)
	}
	if flag.ShareDir != "" {
		srv, err := newBrowseServer(feed, hidden)
		if err != nil {
			return err
		}
		servers = append(servers, srv)
	}
	if len(servers) == 0 {
		return errors.New("nothing to serve: both upload-dir and share-dir are empty")
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		listeners = append(listeners, ln)
	}

	var workers safego.Group
	consumeCtx, stopConsumer := context.WithCancel(context.Background())
	workers.Go(func() {
		feed.Consume(consumeCtx, flag.ActivityInterval, func(e activity.Event) {
			fmt.Println(e.String())
		})
	})

	var group safego.Group
	for i, srv := range servers {
		ln := listeners[i]
		url := netinfo.AccessURL(flag.Host, ln.Addr().(*net.TCPAddr).Port)
		log.Info("%s listening on %s", srv.Addr, url)
		if flag.ShowQR {
			netinfo.PrintQR(os.Stdout, url)
		}
		feed.Record("Server running at " + url)

		group.Go(func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server on %s failed: %v", srv.Addr, err)
			}
		})
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), flag.ApiGracefulShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown of %s: %v", srv.Addr, err)
		}
	}
	group.Wait()

	stopConsumer()
	workers.Wait()
	return nil
}

func newUploadServer(ctx context.Context, feed *activity.Log, hidden *glob.Matcher) (*http.Server, error) {
	if err := os.MkdirAll(flag.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	root, err := pathguard.New(flag.UploadDir)
	if err != nil {
		return nil, err
	}
	reassembler, err := upload.New(upload.Options{
		Dir:        root.Dir(),
		SessionTTL: flag.SessionTTL,
		Activity:   feed,
	})
	if err != nil {
		return nil, err
	}
	safego.Go(func() { reassembler.RunJanitor(ctx, janitorInterval(flag.SessionTTL)) })

	port := flag.UploadPort
	svc := &controller.Services{
		Name:          "upload",
		AccessURL:     netinfo.AccessURL(flag.Host, port),
		Activity:      feed,
		Reassembler:   reassembler,
		Store:         upload.NewStore(root, hidden, feed),
		MaxChunkBytes: flag.MaxChunkBytes,
		ChunkSize:     min(int64(defaultChunkSize), flag.MaxChunkBytes),
	}
	log.Info("upload service saving to %s", root.Dir())
	return newServer(port, web.NewUploadRouter(svc)), nil
}

func newBrowseServer(feed *activity.Log, hidden *glob.Matcher) (*http.Server, error) {
	root, err := pathguard.New(flag.ShareDir)
	if err != nil {
		return nil, err
	}

	port := flag.BrowsePort
	svc := &controller.Services{
		Name:      "browse",
		AccessURL: netinfo.AccessURL(flag.Host, port),
		Activity:  feed,
		Browser: browse.New(browse.Options{
			Root:     root,
			Hide:     hidden,
			Activity: feed,
		}),
	}
	log.Info("browse service sharing %s", root.Dir())
	return newServer(port, web.NewBrowseRouter(svc)), nil
}

func newServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(flag.Host, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.StdLogger(),
	}
}

func janitorInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Second)
}
