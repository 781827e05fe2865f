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
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/metrics"
	"github.com/lanvault/lanvault/pkg/web/controller"
	"github.com/lanvault/lanvault/pkg/web/model"
	"github.com/lanvault/lanvault/pkg/web/view"
)

const (
	requestIDHeader = "X-Request-ID"
	// multipart parts above this size are spooled to temp files
	maxMultipartMemory = 8 << 20
)

// NewUploadRouter builds the Gin engine of the upload service.
func NewUploadRouter(svc *controller.Services) *gin.Engine {
	r := newEngine(svc)

	r.GET("/", withUpload(svc, func(c *controller.UploadController) { c.Index() }))
	r.GET("/files/*name", withUpload(svc, func(c *controller.UploadController) { c.DownloadFile() }))
	r.GET("/delete/*name", withUpload(svc, func(c *controller.UploadController) { c.DeleteFile() }))

	chunks := r.Group("/upload_chunk")
	{
		chunks.POST("", withUpload(svc, func(c *controller.UploadController) { c.UploadChunk() }))
		chunks.GET("/status", withUpload(svc, func(c *controller.UploadController) { c.ChunkStatus() }))
	}

	return r
}

// NewBrowseRouter builds the Gin engine of the browse service.
func NewBrowseRouter(svc *controller.Services) *gin.Engine {
	r := newEngine(svc)

	r.GET("/", withBrowse(svc, func(c *controller.BrowseController) { c.Browse() }))
	r.GET("/browse/*subpath", withBrowse(svc, func(c *controller.BrowseController) { c.Browse() }))

	download := r.Group("/download")
	{
		download.GET("/file/*path", withBrowse(svc, func(c *controller.BrowseController) { c.DownloadFile() }))
		download.GET("/folder/*path", withBrowse(svc, func(c *controller.BrowseController) { c.DownloadFolder() }))
	}

	return r
}

// newEngine sets up middleware and the routes both services share.
func newEngine(svc *controller.Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.SetHTMLTemplate(view.Load())
	r.Use(gin.CustomRecoveryWithWriter(nil, recoverPanic))
	r.Use(logMiddleware(svc.Name), securityHeaders())

	r.GET("/ping", controller.PingHandler)
	r.GET("/qr.png", withCommon(svc, func(c *controller.CommonController) { c.QRCode() }))
	r.GET("/activity", withActivity(svc, func(c *controller.ActivityController) { c.StreamActivity() }))

	metric := r.Group("/metrics")
	{
		metric.GET("", withMetric(svc, func(c *controller.MetricController) { c.GetMetrics() }))
		metric.GET("/watch", withMetric(svc, func(c *controller.MetricController) { c.WatchMetrics() }))
		metric.GET("/prometheus", gin.WrapH(metrics.Handler()))
	}

	return r
}

func withUpload(svc *controller.Services, fn func(*controller.UploadController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewUploadController(ctx, svc))
	}
}

func withBrowse(svc *controller.Services, fn func(*controller.BrowseController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewBrowseController(ctx, svc))
	}
}

func withMetric(svc *controller.Services, fn func(*controller.MetricController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewMetricController(ctx, svc))
	}
}

func withActivity(svc *controller.Services, fn func(*controller.ActivityController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewActivityController(ctx, svc))
	}
}

func withCommon(svc *controller.Services, fn func(*controller.CommonController)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fn(controller.NewCommonController(ctx, svc))
	}
}

// recoverPanic answers 500 for a handler panic. http.ErrAbortHandler is passed
// on so net/http drops the connection of a response that is already streaming.
func recoverPanic(ctx *gin.Context, err any) {
	if err == http.ErrAbortHandler { // nolint:errorlint
		panic(err)
	}

	log.Error("panic serving %s %s: %v\n%s", ctx.Request.Method, ctx.Request.URL.Path, err, debug.Stack())
	if ctx.Writer.Written() {
		ctx.Abort()
		return
	}
	ctx.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
		Code:    model.ErrorCodeRuntimeError,
		Message: "internal error, see server log",
	})
}

func securityHeaders() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h := ctx.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		ctx.Next()
	}
}

func logMiddleware(service string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Header(requestIDHeader, requestID)

		log.Debug("Requested: %v - %v", ctx.Request.Method, ctx.Request.URL.String())
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := ctx.Writer.Status()
		latency := time.Since(start)
		metrics.RecordHTTPRequest(service, ctx.Request.Method, route, status, latency)
		log.Infow("request",
			"service", service,
			"request_id", requestID,
			"method", ctx.Request.Method,
			"path", ctx.Request.URL.Path,
			"status", status,
			"latency", latency,
			"client", ctx.ClientIP(),
		)
	}
}
