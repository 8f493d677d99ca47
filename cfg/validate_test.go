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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Includes: []IncludeConfig{{Path: "/home/user"}},
		Logging:  GetDefaultLoggingConfig(),
		Monitor:  GetDefaultMonitorConfig(),
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	require.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfigRejectsNoIncludes(t *testing.T) {
	c := validConfig()
	c.Includes = nil
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsBadLogRotate(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsNegativeMonitorValues(t *testing.T) {
	c := validConfig()
	c.Monitor.DebounceMs = -1
	assert.Error(t, ValidateConfig(c))
}
