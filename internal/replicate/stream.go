// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replicate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"
)

// Event names sent on a prediction stream.
const (
	EventOutput = "output"
	EventError  = "error"
	EventDone   = "done"
)

var (
	// ErrStreamTruncated indicates the connection ended before a done event.
	ErrStreamTruncated = errors.New("stream ended before completion")

	// ErrPredictionCanceled indicates the prediction was canceled remotely.
	ErrPredictionCanceled = errors.New("prediction canceled")

	// ErrPredictionFailed indicates the prediction reported an error.
	ErrPredictionFailed = errors.New("prediction failed")
)

// StreamError is a terminal stream failure. Partial holds the text received
// before the failure.
type StreamError struct {
	Partial string
	Detail  string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("stream error: %v: %s", e.Err, e.Detail)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// PartialText returns the text streamed before err, if err is a StreamError.
func PartialText(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Partial
	}
	return ""
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader reads Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream and returns its type
// and data. Multiple data lines are joined with "\n". One space after the
// field colon is stripped and the rest of the value is kept verbatim, since
// output fragments often begin with whitespace. Returns io.EOF when the
// stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var sawField bool

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF {
				if sawField {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))

		// Empty line dispatches the event
		if len(line) == 0 {
			if sawField {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		// Comments
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			eventType = string(value)
			sawField = true
		case "data":
			dataLines = append(dataLines, value)
			sawField = true
		}
		// id: and retry: are ignored
	}
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, finite sequence of text fragments from one prediction.
// It cannot be restarted; once Next returns false it keeps returning false.
// A Stream is not safe for concurrent use, except Close.
type Stream struct {
	ctx          context.Context
	body         io.ReadCloser
	reader       *SSEReader
	predictionID string

	fragment string
	text     strings.Builder
	count    int
	err      error
	finished bool

	closeOnce sync.Once
}

func newStream(ctx context.Context, predictionID string, body io.ReadCloser) *Stream {
	return &Stream{
		ctx:          ctx,
		body:         body,
		reader:       NewSSEReader(body),
		predictionID: predictionID,
	}
}

// NewStreamFromReader builds a Stream over an already-open event stream.
func NewStreamFromReader(ctx context.Context, predictionID string, body io.ReadCloser) *Stream {
	return newStream(ctx, predictionID, body)
}

// Next advances to the next fragment. It returns false when the stream is
// complete or failed; Err distinguishes the two.
func (s *Stream) Next() bool {
	if s.finished {
		return false
	}

	for {
		eventType, data, err := s.reader.ReadEvent()
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else if err == io.EOF {
				err = ErrStreamTruncated
			}
			s.fail(err, "")
			return false
		}

		switch eventType {
		case EventOutput:
			if len(data) == 0 {
				continue
			}
			s.fragment = string(data)
			s.text.WriteString(s.fragment)
			s.count++
			return true

		case EventError:
			s.fail(ErrPredictionFailed, errorDetail(data))
			return false

		case EventDone:
			s.finishDone(data)
			return false
		}
		// Unknown events (logs, heartbeats) are skipped
	}
}

// finishDone handles the done event, whose payload may carry a failure reason.
func (s *Stream) finishDone(data []byte) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if len(bytes.TrimSpace(data)) > 0 {
		_ = json.Unmarshal(data, &payload)
	}

	switch payload.Reason {
	case "canceled":
		s.fail(ErrPredictionCanceled, "")
	case "error":
		s.fail(ErrPredictionFailed, "")
	default:
		s.finished = true
		s.fragment = ""
		s.Close()
	}
}

func (s *Stream) fail(err error, detail string) {
	s.finished = true
	s.fragment = ""
	s.err = &StreamError{Partial: s.text.String(), Detail: detail, Err: err}
	s.Close()
}

func errorDetail(data []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() string {
	return s.fragment
}

// Text returns the concatenation of every fragment received so far.
func (s *Stream) Text() string {
	return s.text.String()
}

// Count returns the number of fragments received so far.
func (s *Stream) Count() int {
	return s.count
}

// Err returns the terminal error, or nil after a clean done event.
func (s *Stream) Err() error {
	return s.err
}

// PredictionID returns the ID of the prediction being streamed.
func (s *Stream) PredictionID() string {
	return s.predictionID
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// Fragments returns the remaining fragments as an iterator. Check Err after
// the loop ends.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		for s.Next() {
			if !yield(s.Fragment()) {
				return
			}
		}
	}
}
