// Copyright 2024 Google Inc. All Rights Reserved.
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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fsearchd/fscore/cfg"
	"github.com/fsearchd/fscore/internal/entry"
)

func TestConfigIncludes(t *testing.T) {
	in := []cfg.IncludeConfig{
		{Path: "/home/user", OneFileSystem: true, Monitored: true},
		{Path: "/var/log"},
	}
	out := configIncludes(in)
	assert.Len(t, out, 2)
	assert.Equal(t, "/home/user", out[0].Path)
	assert.True(t, out[0].OneFileSystem)
	assert.EqualValues(t, 0, out[0].ID)
	assert.EqualValues(t, 1, out[1].ID)
}

func TestConfigExcludeManagerShouldSkip(t *testing.T) {
	m := configExcludeManager{patterns: []string{"*.tmp", ".git"}}
	assert.True(t, m.ShouldSkip("/a/b/file.tmp", false))
	assert.True(t, m.ShouldSkip("/a/.git", true))
	assert.False(t, m.ShouldSkip("/a/b/file.go", false))
}

func TestConfigExcludeManagerEqual(t *testing.T) {
	a := configExcludeManager{patterns: []string{"*.tmp"}}
	b := configExcludeManager{patterns: []string{"*.tmp"}}
	c := configExcludeManager{patterns: []string{"*.bak"}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestTrackingFlags(t *testing.T) {
	f := trackingFlags(cfg.TrackingConfig{Size: true, Extension: true})
	assert.NotZero(t, f&entry.FlagForProperty(entry.SortSize))
	assert.NotZero(t, f&entry.FlagForProperty(entry.SortExtension))
	assert.Zero(t, f&entry.FlagForProperty(entry.SortMTime))
}
