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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fsearchd/fscore/cfg"
	"github.com/fsearchd/fscore/common"
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/events"
	"github.com/fsearchd/fscore/internal/logger"
	"github.com/fsearchd/fscore/internal/metrics"
	"github.com/fsearchd/fscore/internal/query"
	"github.com/fsearchd/fscore/internal/rpc"
	"github.com/fsearchd/fscore/internal/scheduler"
	"github.com/fsearchd/fscore/internal/walker"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	RunConfig     cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "fsearchd",
	Short: "Run the fsearch indexing and search daemon",
	Long: `fsearchd scans the configured include paths, keeps an in-memory
index current via filesystem monitoring, and serves search requests
over its Work Scheduler.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.ValidateConfig(&RunConfig); err != nil {
			return err
		}
		return run(cmd.Context(), &RunConfig)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&RunConfig, viper.DecodeHook(cfg.DecodeHook()))
		return
	}

	abs, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(abs)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&RunConfig, viper.DecodeHook(cfg.DecodeHook()))
}

// run wires cfg.Config into the scheduler and blocks until SIGINT/SIGTERM,
// saving a snapshot on the way out when configured to.
func run(ctx context.Context, c *cfg.Config) error {
	logger.Init(logger.Config{
		Format:    "text",
		Level:     strings.ToLower(string(c.Logging.Severity)),
		FilePath:  string(c.Logging.FilePath),
		MaxSizeMB: c.Logging.LogRotate.MaxFileSizeMb,
	})
	log := logger.Named("cmd")

	snapshotPath := string(c.Snapshot.Path)
	if snapshotPath == "" {
		snapshotPath = filepath.Join(os.TempDir(), cfg.DefaultSnapshotFileName)
	}

	bus := events.NewBus(256)
	bus.Subscribe(func(ev events.Event) {
		log.Info("event", "kind", ev.Kind.String(), "view_id", ev.ViewID)
	})

	var shutdownFns []common.ShutdownFn
	shutdownFns = append(shutdownFns, func(context.Context) error {
		bus.Close()
		return nil
	})
	defer func() {
		if err := common.JoinShutdownFunc(shutdownFns...)(context.Background()); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	var metricsHandle metrics.Handle = metrics.Noop{}
	if c.Metrics.Enabled {
		h, promHandler, err := metrics.New()
		if err != nil {
			return fmt.Errorf("metrics.New: %w", err)
		}
		metricsHandle = h

		mux := http.NewServeMux()
		mux.Handle("/metrics", promHandler)
		addr := c.Metrics.Addr
		if addr == "" {
			addr = cfg.DefaultMetricsAddr
		}
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server exited", "error", err)
			}
		}()
		shutdownFns = append(shutdownFns, srv.Shutdown)
	}

	sched := scheduler.New(scheduler.Config{
		Bus:          bus,
		Metrics:      metricsHandle,
		Walker:       walker.New(),
		Matcher:      query.DefaultMatcher{},
		Flags:        trackingFlags(c.Tracking),
		SnapshotPath: snapshotPath,
	})

	if c.RPC.Enabled {
		socketPath := c.RPC.SocketPath
		if socketPath == "" {
			socketPath = filepath.Join(os.TempDir(), cfg.DefaultRPCSocketName)
		}
		go func() {
			if err := rpc.ListenAndServe(socketPath, sched, bus); err != nil {
				log.Error("rpc server exited", "error", err)
			}
		}()
	}

	includeMgr := configIncludeManager{includes: configIncludes(c.Includes)}
	exclMgr := configExcludeManager{patterns: c.Excludes}

	if c.Snapshot.LoadOnStartup {
		done := make(chan scheduler.Result, 1)
		sched.Enqueue(scheduler.Item{Kind: scheduler.LoadFromFile, FilePath: snapshotPath, Done: done})
		if res := <-done; res.Err != nil {
			log.Warn("initial load failed, scanning instead", "error", res.Err)
			sched.Enqueue(scheduler.Item{Kind: scheduler.Scan, Ctx: ctx, IncludeMgr: includeMgr, ExcludeMgr: exclMgr})
		}
	} else {
		sched.Enqueue(scheduler.Item{Kind: scheduler.Scan, Ctx: ctx, IncludeMgr: includeMgr, ExcludeMgr: exclMgr})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case <-ctx.Done():
	}

	if c.Snapshot.SaveOnShutdown {
		done := make(chan scheduler.Result, 1)
		sched.Enqueue(scheduler.Item{Kind: scheduler.SaveToFile, FilePath: snapshotPath, Done: done})
		if res := <-done; res.Err != nil {
			log.Error("final save failed", "error", res.Err)
		}
	}

	quit := make(chan scheduler.Result, 1)
	sched.Enqueue(scheduler.Item{Kind: scheduler.Quit, Done: quit})
	<-quit
	sched.Wait()
	return nil
}

func trackingFlags(t cfg.TrackingConfig) entry.Flag {
	var f entry.Flag
	if t.Size {
		f |= entry.FlagForProperty(entry.SortSize)
	}
	if t.MTime {
		f |= entry.FlagForProperty(entry.SortMTime)
	}
	if t.Extension {
		f |= entry.FlagForProperty(entry.SortExtension)
	}
	if t.Path {
		f |= entry.FlagForProperty(entry.SortPath)
	}
	return f
}

func configIncludes(in []cfg.IncludeConfig) []walker.Include {
	out := make([]walker.Include, len(in))
	for i, c := range in {
		out[i] = walker.Include{
			Path:          string(c.Path),
			OneFileSystem: c.OneFileSystem,
			Monitored:     c.Monitored,
			ScanAfterLoad: c.ScanAfterLoad,
			ID:            uint16(i),
		}
	}
	return out
}

// configIncludeManager adapts a fixed []walker.Include slice, parsed
// once from cfg.Config, to store.IncludeManager.
type configIncludeManager struct {
	includes []walker.Include
}

func (m configIncludeManager) Includes() []walker.Include { return m.includes }

// configExcludeManager matches paths against a fixed set of
// filepath.Match-style glob patterns parsed from cfg.Config.
type configExcludeManager struct {
	patterns []string
}

func (m configExcludeManager) ShouldSkip(path string, isDir bool) bool {
	base := filepath.Base(path)
	for _, p := range m.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

func (m configExcludeManager) Equal(other walker.ExcludeManager) bool {
	o, ok := other.(configExcludeManager)
	if !ok {
		return false
	}
	if len(m.patterns) != len(o.patterns) {
		return false
	}
	for i := range m.patterns {
		if m.patterns[i] != o.patterns[i] {
			return false
		}
	}
	return true
}
