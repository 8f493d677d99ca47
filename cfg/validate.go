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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidSeverity(s LogSeverity) error {
	if _, ok := severityRanking[s]; !ok {
		return fmt.Errorf("invalid log severity: %s", s)
	}
	return nil
}

func isValidMonitorConfig(m *MonitorConfig) error {
	if m.DebounceMs < 0 {
		return fmt.Errorf("debounce-ms can't be negative")
	}
	if m.MaxWatchDirs < 0 {
		return fmt.Errorf("max-watch-dirs can't be negative")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if len(config.Includes) == 0 {
		return fmt.Errorf("at least one include path is required")
	}

	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err := isValidSeverity(config.Logging.Severity); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}

	if err := isValidMonitorConfig(&config.Monitor); err != nil {
		return fmt.Errorf("error parsing monitor config: %w", err)
	}

	return nil
}
