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

package model

import (
	"github.com/go-playground/validator/v10"
)

// ChunkUploadRequest is the form metadata that accompanies one chunk.
type ChunkUploadRequest struct {
	Filename string `form:"filename" validate:"required,max=1024"`
	Index    int    `form:"index" validate:"gte=0,ltfield=Total"`
	Total    int    `form:"total" validate:"gte=1"`
	// Size is the declared final size, -1 when absent.
	Size   int64  `form:"size" validate:"gte=-1"`
	SHA256 string `form:"sha256" validate:"omitempty,len=64,hexadecimal"`
}

func (r *ChunkUploadRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
