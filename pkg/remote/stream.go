package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/engine"
	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/telemetry"
)

// maxFrameSize bounds one frame on the stream transport.
const maxFrameSize = 10 * 1024 * 1024

// Frame is one line on the stream transport. Requests carry Command,
// replies carry either Response or Error.
type Frame struct {
	ID       string `json:"id"`
	Command  string `json:"command,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Encoder writes frames, one JSON document per line.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an encoder on w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes f and flushes.
func (e *Encoder) Encode(f Frame) error {
	if f.ID == "" {
		return errors.New("frame id is required")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Decoder reads frames written by an Encoder.
type Decoder struct {
	s *bufio.Scanner
}

// NewDecoder creates a decoder on r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &Decoder{s: s}
}

// Decode reads the next frame. It returns io.EOF at end of stream.
func (d *Decoder) Decode() (Frame, error) {
	if !d.s.Scan() {
		if err := d.s.Err(); err != nil {
			return Frame{}, fmt.Errorf("scan error: %w", err)
		}
		return Frame{}, io.EOF
	}

	var f Frame
	if err := json.Unmarshal(d.s.Bytes(), &f); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	if f.ID == "" {
		return Frame{}, errors.New("frame has no id")
	}
	return f, nil
}

// sessionEnder is implemented by engines that hold per-caller sessions.
type sessionEnder interface {
	EndSession(id string)
}

// Serve answers request frames from r on w until r is exhausted or ctx is
// cancelled. The stream is one caller with its own engine session. Frames
// are handled in order. An engine error is sent back in
// the frame's Error field; a malformed frame ends the stream.
func Serve(ctx context.Context, eng gateway.Engine, r io.Reader, w io.Writer, logger *telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	logger = logger.NewComponentLogger("stream")

	session := "stream:" + uuid.NewString()
	ctx = engine.WithSession(ctx, session)
	if e, ok := eng.(sessionEnder); ok {
		defer e.EndSession(session)
	}

	dec := NewDecoder(r)
	enc := NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			logger.Debug("stream closed")
			return nil
		}
		if err != nil {
			return err
		}

		reply := Frame{ID: req.ID}
		response, err := eng.RunCommand(ctx, req.Command)
		if err != nil {
			logger.WithError(err).WithField("frame_id", req.ID).Warn("engine call failed")
			reply.Error = err.Error()
		} else {
			reply.Response = response
		}

		if err := enc.Encode(reply); err != nil {
			return err
		}
	}
}

// StreamClient is a gateway.Engine that talks to Serve over a pair of streams.
type StreamClient struct {
	enc    *Encoder
	dec    *Decoder
	closer io.Closer

	mu     sync.Mutex
	closed bool
}

var _ gateway.Engine = (*StreamClient)(nil)

// NewStreamClient creates a client writing requests to w and reading replies
// from r. closer, if not nil, is closed by Close.
func NewStreamClient(r io.Reader, w io.Writer, closer io.Closer) (*StreamClient, error) {
	if r == nil || w == nil {
		return nil, errors.New("reader and writer are required")
	}
	return &StreamClient{
		enc:    NewEncoder(w),
		dec:    NewDecoder(r),
		closer: closer,
	}, nil
}

// RunCommand sends command and waits for its reply. Calls are serialized.
func (c *StreamClient) RunCommand(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if err := c.enc.Encode(Frame{ID: id, Command: command}); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	reply, err := c.dec.Decode()
	if errors.Is(err, io.EOF) {
		return "", errors.New("engine exited unexpectedly")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if reply.ID != id {
		return "", fmt.Errorf("frame id mismatch: expected %s, got %s", id, reply.ID)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("engine failed: %s", reply.Error)
	}
	return reply.Response, nil
}

// Close closes the underlying streams.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
