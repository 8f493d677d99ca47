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
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsAndUnmarshal(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("fsearchd", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))

	require.NoError(t, fs.Parse([]string{
		"--include=/home/user/docs",
		"--include=/home/user/code",
		"--exclude=*.tmp",
		"--track-extension",
		"--metrics",
		"--metrics-addr=:9999",
	}))

	var cfg Config
	require.NoError(t, viper.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())))

	assert.Equal(t, []string{"/home/user/docs", "/home/user/code"}, viper.GetStringSlice("includes"))
	assert.True(t, cfg.Tracking.Extension)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestBindFlagsAppliesDefaults(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("fsearchd", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, "fsearchd", viper.GetString("app-name"))
	assert.True(t, viper.GetBool("tracking.size"))
	assert.False(t, viper.GetBool("metrics.enabled"))
}
