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

package web

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/browse"
	"github.com/lanvault/lanvault/pkg/pathguard"
	"github.com/lanvault/lanvault/pkg/upload"
	"github.com/lanvault/lanvault/pkg/util/glob"
	"github.com/lanvault/lanvault/pkg/web/controller"
	"github.com/lanvault/lanvault/pkg/web/model"
)

func newUploadFixture(t *testing.T) (*gin.Engine, *controller.Services) {
	t.Helper()

	root, err := pathguard.New(t.TempDir())
	require.NoError(t, err)
	feed := activity.New()
	reassembler, err := upload.New(upload.Options{Dir: root.Dir(), SessionTTL: time.Minute, Activity: feed})
	require.NoError(t, err)

	svc := &controller.Services{
		Name:          "upload",
		AccessURL:     "http://10.0.0.2:8000",
		Activity:      feed,
		Reassembler:   reassembler,
		Store:         upload.NewStore(root, nil, feed),
		MaxChunkBytes: 1 << 20,
		ChunkSize:     1 << 20,
	}
	return NewUploadRouter(svc), svc
}

func newBrowseFixture(t *testing.T) (*gin.Engine, *controller.Services) {
	t.Helper()

	root, err := pathguard.New(t.TempDir())
	require.NoError(t, err)
	feed := activity.New()

	svc := &controller.Services{
		Name:      "browse",
		AccessURL: "http://10.0.0.2:8001",
		Activity:  feed,
		Browser: browse.New(browse.Options{
			Root:     root,
			Hide:     glob.MustMatcher("*.secret"),
			Activity: feed,
		}),
	}
	return NewBrowseRouter(svc), svc
}

func serve(r http.Handler, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sendChunk(t *testing.T, r http.Handler, name string, index, total int, data string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("filename", name))
	require.NoError(t, mw.WriteField("index", strconv.Itoa(index)))
	require.NoError(t, mw.WriteField("total", strconv.Itoa(total)))
	part, err := mw.CreateFormFile("file", "blob")
	require.NoError(t, err)
	_, err = part.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return serve(r, http.MethodPost, "/upload_chunk", &body, http.Header{"Content-Type": {mw.FormDataContentType()}})
}

func feedMessages(feed *activity.Log) []string {
	var out []string
	for _, e := range feed.Drain() {
		out = append(out, e.Message)
	}
	return out
}

func TestUploadRouterRoundTrip(t *testing.T) {
	r, svc := newUploadFixture(t)

	w := sendChunk(t, r, "report.pdf", 0, 2, "AB")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, "/?format=json", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending model.SavedFilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Empty(t, pending.Files, "a partial upload must not be listed")
	w = serve(r, http.MethodGet, "/", nil, nil)
	assert.NotContains(t, w.Body.String(), "report.pdf")

	w = sendChunk(t, r, "report.pdf", 1, 2, "CD")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "OK", w.Body.String())

	w = serve(r, http.MethodGet, "/", nil, http.Header{"Accept": {"application/json"}})
	require.Equal(t, http.StatusOK, w.Code)
	var saved model.SavedFilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.Len(t, saved.Files, 1)
	assert.Equal(t, "report.pdf", saved.Files[0].Name)
	assert.EqualValues(t, 4, saved.Files[0].Size)

	w = serve(r, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `href="/files/report.pdf"`)
	assert.Contains(t, w.Body.String(), "1048576")

	w = serve(r, http.MethodGet, "/files/report.pdf", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABCD", w.Body.String())

	w = serve(r, http.MethodGet, "/delete/report.pdf", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.NoFileExists(t, filepath.Join(svc.Store.Dir(), "report.pdf"))

	w = serve(r, http.MethodGet, "/delete/ghost.txt", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)

	assert.Equal(t, []string{"Saved: report.pdf", "Deleted: report.pdf"}, feedMessages(svc.Activity))
}

func TestUploadRouterNameWithSpaces(t *testing.T) {
	r, svc := newUploadFixture(t)

	w := sendChunk(t, r, "my notes #1.txt", 0, 1, "hi")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.FileExists(t, filepath.Join(svc.Store.Dir(), "my notes #1.txt"))

	w = serve(r, http.MethodGet, "/files/my%20notes%20%231.txt", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", w.Body.String())
}

func TestUploadRouterStatusAndConflicts(t *testing.T) {
	r, _ := newUploadFixture(t)

	w := sendChunk(t, r, "movie.mkv", 1, 3, "x")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = sendChunk(t, r, "movie.mkv", 0, 3, "x")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/upload_chunk/status?filename=movie.mkv", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status model.UploadStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.NextIndex)

	w = serve(r, http.MethodGet, "/upload_chunk/status?filename=ghost.mkv", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRouterResumesInterruptedUpload(t *testing.T) {
	r, svc := newUploadFixture(t)

	w := sendChunk(t, r, "big.bin", 0, 3, "AA")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// starting over while the session is live is refused
	w = sendChunk(t, r, "big.bin", 0, 3, "AA")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), string(model.ErrorCodeUploadBusy))

	status := func() model.UploadStatus {
		t.Helper()
		w := serve(r, http.MethodGet, "/upload_chunk/status?filename=big.bin", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var s model.UploadStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
		return s
	}
	s := status()
	assert.Equal(t, 1, s.NextIndex)
	assert.Equal(t, 3, s.Total)
	assert.EqualValues(t, 2, s.Received)

	w = sendChunk(t, r, "big.bin", s.NextIndex, s.Total, "BB")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a resent chunk whose response was lost is rejected without writing
	w = sendChunk(t, r, "big.bin", 1, 3, "BB")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2, status().NextIndex)

	w = sendChunk(t, r, "big.bin", status().NextIndex, 3, "CC")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := os.ReadFile(filepath.Join(svc.Store.Dir(), "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, "AABBCC", string(got))

	w = serve(r, http.MethodGet, "/upload_chunk/status?filename=big.bin", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBrowseRouterListingAndDownloads(t *testing.T) {
	r, svc := newBrowseFixture(t)
	dir := svc.Browser.Root().Dir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "sub", "b.txt"), []byte("beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "keys.secret"), []byte("nope"), 0o644))

	w := serve(r, http.MethodGet, "/browse/docs?format=json", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing model.DirectoryListing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, "docs", listing.Current)
	require.NotNil(t, listing.Parent)
	var names []string
	for _, e := range listing.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.txt", "sub"}, names)

	w = serve(r, http.MethodGet, "/browse/docs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/browse/"`)
	assert.Contains(t, w.Body.String(), `href="/download/file/docs/a.txt"`)
	assert.Contains(t, w.Body.String(), `href="/download/folder/docs/sub"`)

	w = serve(r, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Back")

	w = serve(r, http.MethodGet, "/download/file/docs/a.txt", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", w.Body.String())

	w = serve(r, http.MethodGet, "/download/file/docs/keys.secret", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/download/folder/docs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, entries)

	assert.Equal(t, []string{"Downloaded file: docs/a.txt", "Downloaded folder: docs"}, feedMessages(svc.Activity))
}

func TestBrowseRouterRejectsTraversal(t *testing.T) {
	r, svc := newBrowseFixture(t)

	for _, target := range []string{
		"/browse/%2e%2e/%2e%2e/etc",
		"/download/file/%2e%2e/%2e%2e/etc/passwd",
		"/download/folder/%2e%2e",
		"/browse/..%2fescape",
	} {
		w := serve(r, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, target)
		assert.NotContains(t, w.Body.String(), svc.Browser.Root().Dir(), target)
	}

	w := serve(r, http.MethodGet, "/browse/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, feedMessages(svc.Activity))
}

func TestCommonRoutes(t *testing.T) {
	r, _ := newBrowseFixture(t)

	w := serve(r, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = serve(r, http.MethodGet, "/ping", nil, http.Header{requestIDHeader: {"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w = serve(r, http.MethodGet, "/qr.png", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = serve(r, http.MethodGet, "/metrics/prometheus", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lanvault_http_requests_total")
}

func TestRecoveryHandlesPanics(t *testing.T) {
	r, _ := newBrowseFixture(t)
	r.GET("/test/abort", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
		_, _ = ctx.Writer.WriteString("partial")
		ctx.Writer.Flush()
		panic(http.ErrAbortHandler)
	})
	r.GET("/test/panic", func(*gin.Context) {
		panic("boom")
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/test/abort")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = io.ReadAll(resp.Body)
	assert.Error(t, err, "an aborted stream must not end cleanly")
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/test/panic")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), string(model.ErrorCodeRuntimeError))
}

func TestActivityStream(t *testing.T) {
	r, svc := newBrowseFixture(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/activity", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the subscription is registered before the headers are flushed
	svc.Activity.Record("Server running at http://10.0.0.2:8001")

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e activity.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		assert.Equal(t, "Server running at http://10.0.0.2:8001", e.Message)
		break
	}
}
