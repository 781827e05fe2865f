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

package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"

	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/web/model"
)

// cpuSampleWindow is how long cpu.Percent measures per reading.
const cpuSampleWindow = 200 * time.Millisecond

// MetricController handles system metrics requests
type MetricController struct {
	*basicController
	svc *Services
}

func NewMetricController(ctx *gin.Context, svc *Services) *MetricController {
	return &MetricController{basicController: newBasicController(ctx), svc: svc}
}

// GetMetrics returns current system metrics
func (c *MetricController) GetMetrics() {
	metrics, err := c.readMetrics()
	if err != nil {
		c.RespondError(
			http.StatusInternalServerError,
			model.ErrorCodeRuntimeError,
			fmt.Sprintf("error reading runtime metrics. %v", err),
		)
		return
	}

	c.RespondSuccess(metrics)
}

// WatchMetrics streams system metrics via SSE
func (c *MetricController) WatchMetrics() {
	c.setupSSEResponse()

	for {
		select {
		case <-c.ctx.Request.Context().Done():
			return
		case <-time.After(time.Second * 1):
			metrics, err := c.readMetrics()
			var payload any = metrics
			if err != nil {
				payload = map[string]string{"error": err.Error()}
			}
			msg, _ := json.Marshal(payload) //nolint:errchkjson
			if err := c.writeSSE("metrics", msg); err != nil {
				log.Error("WatchMetrics write data %s error: %v", string(msg), err)
				return
			}
		}
	}
}

// readMetrics collects current CPU, memory and disk metrics
func (c *MetricController) readMetrics() (*model.Metrics, error) {
	metric := model.NewMetrics()

	metric.CpuCount = float64(runtime.GOMAXPROCS(-1))
	metric.Goroutines = runtime.NumGoroutine()
	cpuPercent, err := cpu.Percent(cpuSampleWindow, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU percent: %w", err)
	}
	if len(cpuPercent) > 0 {
		metric.CpuUsedPct = cpuPercent[0]
	}

	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}
	metric.MemTotalMiB = float64(vmStat.Total) / 1024 / 1024
	metric.MemUsedMiB = float64(vmStat.Used) / 1024 / 1024

	if root := c.svc.RootDir(); root != "" {
		usage, err := disk.Usage(root)
		if err != nil {
			return nil, fmt.Errorf("failed to get disk usage: %w", err)
		}
		metric.DiskTotalMiB = float64(usage.Total) / 1024 / 1024
		metric.DiskFreeMiB = float64(usage.Free) / 1024 / 1024
		metric.DiskUsedPct = usage.UsedPercent
	}

	if c.svc != nil && c.svc.Reassembler != nil {
		metric.ActiveUploads = c.svc.Reassembler.Active()
	}

	return metric, nil
}
