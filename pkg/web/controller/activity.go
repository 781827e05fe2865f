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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lanvault/lanvault/pkg/log"
)

const (
	activitySubscriberBuffer = 64
	activityKeepAlive        = 15 * time.Second
)

// ActivityController exposes the live activity feed as an SSE stream.
type ActivityController struct {
	*basicController
	svc *Services
}

func NewActivityController(ctx *gin.Context, svc *Services) *ActivityController {
	return &ActivityController{basicController: newBasicController(ctx), svc: svc}
}

// StreamActivity pushes every new activity event until the client goes away
// or the feed is closed.
func (c *ActivityController) StreamActivity() {
	events, cancel := c.svc.Activity.Subscribe(activitySubscriberBuffer)
	defer cancel()

	c.setupSSEResponse()

	ticker := time.NewTicker(activityKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Request.Context().Done():
			return
		case <-ticker.C:
			if err := c.writeSSEComment("ping"); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			msg, _ := json.Marshal(e) //nolint:errchkjson
			if err := c.writeSSE("activity", msg); err != nil {
				log.Warn("StreamActivity write %s: %v", string(msg), err)
				return
			}
		}
	}
}
