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

package cfg

import (
	"path/filepath"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, input map[string]any, out any) {
	t.Helper()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     out,
	})
	require.NoError(t, err)
	require.NoError(t, dec.Decode(input))
}

func TestDecodeHookTextUnmarshaler(t *testing.T) {
	var c struct {
		Severity LogSeverity
		Path     ResolvedPath
	}
	decode(t, map[string]any{
		"severity": "warning",
		"path":     "relative/dir",
	}, &c)

	require.Equal(t, WarningLogSeverity, c.Severity)
	require.True(t, filepath.IsAbs(string(c.Path)))
}

func TestDecodeHookStringToSlice(t *testing.T) {
	var c struct {
		Excludes []string
	}
	decode(t, map[string]any{"excludes": "*.tmp,*.bak"}, &c)
	require.Equal(t, []string{"*.tmp", "*.bak"}, c.Excludes)
}
