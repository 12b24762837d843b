// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// Frame pacing for streamed replies.
const (
	DefaultBatchSize = 15
	DefaultMaxFPS    = 30
)

// StreamingBuffer batches reply fragments between frames. Fragments are
// written as they arrive and handed to the view when a batch fills or a
// frame interval has passed, whichever comes first.
//
// Safe for concurrent use; fragments are written from the stream goroutine
// and flushed from the Bubble Tea loop.
type StreamingBuffer struct {
	mu            sync.Mutex
	buffer        strings.Builder
	fragmentCount int
	lastFlush     time.Time

	batchSize     int
	maxFPS        int
	flushInterval time.Duration
}

// NewStreamingBuffer creates a buffer flushing every 15 fragments or 30
// times a second.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(DefaultBatchSize, DefaultMaxFPS)
}

// NewStreamingBufferWithConfig creates a buffer with custom pacing. Out of
// range values fall back to the defaults.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = DefaultMaxFPS
	}
	return &StreamingBuffer{
		batchSize:     batchSize,
		maxFPS:        maxFPS,
		flushInterval: time.Second / time.Duration(maxFPS),
		lastFlush:     time.Now(),
	}
}

// Write appends a fragment.
func (sb *StreamingBuffer) Write(fragment string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.WriteString(fragment)
	sb.fragmentCount++
}

// Flush returns the buffered text when a batch or frame interval is due.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if !sb.dueLocked() {
		return "", false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns all buffered text regardless of pacing. Used when the
// stream ends.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) dueLocked() bool {
	if sb.buffer.Len() == 0 {
		return false
	}
	if sb.fragmentCount >= sb.batchSize {
		return true
	}
	return time.Since(sb.lastFlush) >= sb.flushInterval
}

func (sb *StreamingBuffer) takeLocked() string {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.fragmentCount = 0
	sb.lastFlush = time.Now()
	return content
}

// Reset drops buffered text, e.g. when a new reply starts.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.Reset()
	sb.fragmentCount = 0
	sb.lastFlush = time.Now()
}

// Pending returns the number of fragments waiting to be flushed.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.fragmentCount
}

// Interval returns the frame interval.
func (sb *StreamingBuffer) Interval() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.flushInterval
}

// streamTickCmd schedules the next frame of a streamed reply.
func streamTickCmd(seq int, interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Seq: seq, Time: t}
	})
}
