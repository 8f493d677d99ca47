// Copyright 2025 Google LLC
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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockAfterFires(t *testing.T) {
	var c Clock = RealClock{}
	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("RealClock.After never fired")
	}
}

func TestSimulatedClockAdvanceTime(t *testing.T) {
	start := time.Unix(0, 0)
	sc := NewSimulatedClock(start)
	var c Clock = sc

	ch := c.After(10 * time.Second)
	sc.AdvanceTime(10 * time.Second)

	select {
	case got := <-ch:
		assert.True(t, got.Equal(start.Add(10*time.Second)))
	case <-time.After(time.Second):
		t.Fatal("SimulatedClock never fired After channel")
	}
}
