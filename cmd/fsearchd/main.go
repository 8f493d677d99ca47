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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/fsearchd/fscore/cmd"
)

func main() {
	crash := cmd.NewCrashWriter(crashLogPath())
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(crash, "panic: %v\n%s\n", r, debug.Stack())
			fmt.Fprintf(os.Stderr, "fsearchd: panic: %v\n", r)
			os.Exit(2)
		}
	}()

	cmd.Execute()
}

func crashLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "fsearchd")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "crash.log")
}
