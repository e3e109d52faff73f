package orchestrator

import (
	"fmt"
	"sync"
)

// progressBuffer is how many undelivered events a ProgressReporter holds
// before it starts dropping.
const progressBuffer = 64

// ProgressReporter fans progress events into one buffered channel. Emit is
// safe to call from agent goroutines, including after Close.
type ProgressReporter struct {
	mu     sync.RWMutex
	closed bool
	ch     chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan ProgressEvent, progressBuffer)}
}

// Emit queues event without blocking. Events are dropped when the buffer is
// full or the reporter is closed.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	if pr.closed {
		return
	}
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns the channel events are delivered on. It is closed by
// Close.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close stops delivery and closes the subscription channel. Calling it more
// than once is a no-op.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if !pr.closed {
		pr.closed = true
		close(pr.ch)
	}
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	if event.Agent == "" {
		return formatLayerProgress(event)
	}
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Agent)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.Agent)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s complete", event.Agent)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Agent, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Agent)
	}
}

func formatLayerProgress(event ProgressEvent) string {
	header := FormatLayerHeader(event.Iteration, event.Layer)
	switch event.Status {
	case ProgressComplete:
		return header + " aggregated"
	case ProgressFailed:
		return fmt.Sprintf("%s failed: %s", header, event.Message)
	default:
		return header
	}
}

// FormatLayerHeader formats a layer header for display.
// Returns: "[iteration {N}] layer {name}"
func FormatLayerHeader(iteration int, layer string) string {
	return fmt.Sprintf("[iteration %d] layer %s", iteration+1, layer)
}
