// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package async holds the small scheduling primitives shared by the
// orchestration components.
package async

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid submissions: only the function from the last Do
// call within the window runs, once the window elapses with no newer call.
// One Debouncer serializes one logical operation (a search path, an
// attribute fetch path); create one per concern.
type Debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer() *Debouncer {
	return &Debouncer{}
}

// Do schedules fn after delay, replacing any still-pending submission.
// fn runs on a timer goroutine; it must do its own locking.
func (d *Debouncer) Do(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, fn)
}

// Cancel drops any pending submission. A function already started is not
// interrupted; in-flight work is fenced by its own cancellation context.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
