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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is fsearchd's full runtime configuration, bound from flags, a
// YAML config file and defaults, in that order of precedence.
type Config struct {
	AppName string `yaml:"app-name"`

	Includes []IncludeConfig `yaml:"includes"`
	Excludes []string        `yaml:"excludes"`

	Tracking TrackingConfig `yaml:"tracking"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Debug    DebugConfig    `yaml:"debug"`
	RPC      RPCConfig      `yaml:"rpc"`
}

// IncludeConfig mirrors one configured scan root.
type IncludeConfig struct {
	Path          ResolvedPath `yaml:"path"`
	OneFileSystem bool         `yaml:"one-file-system"`
	Monitored     bool         `yaml:"monitored"`
	ScanAfterLoad bool         `yaml:"scan-after-load"`
}

// UnmarshalText lets a bare path (as given to --include) decode into an
// IncludeConfig whose other fields keep their zero values.
func (c *IncludeConfig) UnmarshalText(text []byte) error {
	*c = IncludeConfig{}
	return c.Path.UnmarshalText(text)
}

// TrackingConfig selects which attribute-keyed containers the Store
// builds in addition to the always-present NAME container (§4.3).
type TrackingConfig struct {
	Size      bool `yaml:"size"`
	MTime     bool `yaml:"mtime"`
	Extension bool `yaml:"extension"`
	Path      bool `yaml:"path"`
}

// MonitorConfig tunes the filesystem Monitor's batching behavior.
type MonitorConfig struct {
	DebounceMs   int `yaml:"debounce-ms"`
	MaxWatchDirs int `yaml:"max-watch-dirs"`
}

// SnapshotConfig locates the on-disk database file the Binary Snapshot
// Codec reads and writes.
type SnapshotConfig struct {
	Path           ResolvedPath `yaml:"path"`
	SaveOnShutdown bool         `yaml:"save-on-shutdown"`
	LoadOnStartup  bool         `yaml:"load-on-startup"`
}

// MetricsConfig controls the optional Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DebugConfig exposes the same debug-oriented toggles the teacher
// binds, adapted to this module's own invariant-checking paths.
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
	LogMutex                 bool `yaml:"log-mutex"`
}

// RPCConfig controls the optional gRPC front end a UI process attaches
// to for Search/Sort/ModifySelection/GetItemInfo.
type RPCConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SocketPath string `yaml:"socket-path"`
}

// BindFlags registers fsearchd's command-line flags and binds them
// into viper under the same keys Config's yaml tags use, so flags,
// config file and defaults all resolve through one Unmarshal call.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "fsearchd", "The application name of this daemon.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.StringSliceP("include", "i", nil, "Path to scan and index. May be repeated.")
	if err = viper.BindPFlag("includes", flagSet.Lookup("include")); err != nil {
		return err
	}

	flagSet.StringSliceP("exclude", "x", nil, "Glob pattern to exclude from scanning. May be repeated.")
	if err = viper.BindPFlag("excludes", flagSet.Lookup("exclude")); err != nil {
		return err
	}

	flagSet.BoolP("track-size", "", true, "Maintain a SIZE-sorted container.")
	if err = viper.BindPFlag("tracking.size", flagSet.Lookup("track-size")); err != nil {
		return err
	}

	flagSet.BoolP("track-mtime", "", true, "Maintain an MTIME-sorted container.")
	if err = viper.BindPFlag("tracking.mtime", flagSet.Lookup("track-mtime")); err != nil {
		return err
	}

	flagSet.BoolP("track-extension", "", false, "Maintain an EXTENSION-sorted container.")
	if err = viper.BindPFlag("tracking.extension", flagSet.Lookup("track-extension")); err != nil {
		return err
	}

	flagSet.StringP("snapshot-path", "", "", "Path to the on-disk snapshot database.")
	if err = viper.BindPFlag("snapshot.path", flagSet.Lookup("snapshot-path")); err != nil {
		return err
	}

	flagSet.BoolP("metrics", "", false, "Serve Prometheus metrics.")
	if err = viper.BindPFlag("metrics.enabled", flagSet.Lookup("metrics")); err != nil {
		return err
	}

	flagSet.StringP("metrics-addr", "", ":9191", "Address the Prometheus endpoint listens on.")
	if err = viper.BindPFlag("metrics.addr", flagSet.Lookup("metrics-addr")); err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants")); err != nil {
		return err
	}

	flagSet.BoolP("rpc", "", false, "Serve the gRPC front end for UI processes.")
	if err = viper.BindPFlag("rpc.enabled", flagSet.Lookup("rpc")); err != nil {
		return err
	}

	flagSet.StringP("rpc-socket", "", "", "Unix socket path the gRPC front end listens on.")
	if err = viper.BindPFlag("rpc.socket-path", flagSet.Lookup("rpc-socket")); err != nil {
		return err
	}

	return nil
}
