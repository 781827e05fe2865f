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

// Package metrics exposes Prometheus counters for both services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)

	chunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanvault_upload_chunks_total",
			Help: "Upload chunks by outcome",
		},
		[]string{"result"},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanvault_upload_bytes_total",
			Help: "Bytes appended to in-flight uploads",
		},
	)

	uploadsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanvault_uploads_completed_total",
			Help: "Uploads promoted to their final name",
		},
	)

	uploadSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanvault_upload_sessions_active",
			Help: "Upload sessions waiting for more chunks",
		},
	)

	uploadSessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanvault_upload_sessions_expired_total",
			Help: "Idle upload sessions removed by the janitor",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanvault_downloads_total",
			Help: "Downloads by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	downloadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanvault_download_bytes_total",
			Help: "Bytes sent by download kind",
		},
		[]string{"kind"},
	)

	deletesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanvault_deletes_total",
			Help: "Saved files removed through the upload service",
		},
	)

	activityEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanvault_activity_events_total",
			Help: "Activity events recorded",
		},
	)

	activitySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanvault_activity_subscribers",
			Help: "Connected activity stream clients",
		},
	)
)

// Download kinds.
const (
	KindFile   = "file"
	KindFolder = "folder"
	KindSaved  = "saved"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(service, method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(service, method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(service, method, route).Observe(duration.Seconds())
}

// RecordChunk records one chunk outcome ("ok", "rejected" or "error").
func RecordChunk(result string, bytes int64) {
	chunksTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		uploadBytes.Add(float64(bytes))
	}
}

// RecordUploadComplete records a promoted upload.
func RecordUploadComplete() {
	uploadsCompleted.Inc()
}

// SetActiveSessions sets the number of live upload sessions.
func SetActiveSessions(count int) {
	uploadSessionsActive.Set(float64(count))
}

// RecordSessionExpired records a swept upload session.
func RecordSessionExpired() {
	uploadSessionsExpired.Inc()
}

// RecordDownload records a finished download of the given kind.
func RecordDownload(kind string, bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	downloadsTotal.WithLabelValues(kind, status).Inc()
	if bytes > 0 {
		downloadBytes.WithLabelValues(kind).Add(float64(bytes))
	}
}

// RecordDelete records a deleted saved file.
func RecordDelete() {
	deletesTotal.Inc()
}

// RecordActivityEvent records an activity event.
func RecordActivityEvent() {
	activityEvents.Inc()
}

// SetActivitySubscribers sets the number of activity stream clients.
func SetActivitySubscribers(count int) {
	activitySubscribers.Set(float64(count))
}
