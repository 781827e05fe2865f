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

import "time"

// FileInfo describes one file or directory in a listing.
type FileInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path,omitempty"`
	IsDir      bool      `json:"is_dir"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SavedFilesResponse lists completed uploads.
type SavedFilesResponse struct {
	Files []FileInfo `json:"files"`
}

// DirectoryListing is the JSON form of a browsed directory. Parent is null
// at the root.
type DirectoryListing struct {
	Current string     `json:"current"`
	Parent  *string    `json:"parent"`
	Entries []FileInfo `json:"entries"`
}

// UploadStatus reports the progress of a live upload session.
type UploadStatus struct {
	Filename  string    `json:"filename"`
	NextIndex int       `json:"next_index"`
	Total     int       `json:"total"`
	Received  int64     `json:"received"`
	UpdatedAt time.Time `json:"updated_at"`
}
