// Package protocol implements the newline-delimited JSON wire codec shared
// by server and client.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonerickson/tui-chat/src/types"
)

// ErrMalformedFrame reports a frame that is not a well-formed JSON object.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// ErrEmptyFrame reports a frame with no content after trimming whitespace.
var ErrEmptyFrame = errors.New("protocol: empty frame")

const terminator = '\n'

// Encode serializes an envelope as a single newline-terminated frame.
func Encode(env types.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return append(data, terminator), nil
}

// Decode parses one frame into an envelope. Anything that is not a JSON
// object yields an error, never a panic; the caller decides whether to drop
// the frame or tear the connection down.
func Decode(frame []byte) (types.Envelope, error) {
	var env types.Envelope

	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return env, ErrEmptyFrame
	}
	if trimmed[0] != '{' {
		return env, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return env, nil
}

// SplitFrames splits raw transport data into individual frames, dropping
// empty fragments such as the one following a trailing terminator.
func SplitFrames(data []byte) [][]byte {
	parts := bytes.Split(data, []byte{terminator})
	frames := make([][]byte, 0, len(parts))
	for _, part := range parts {
		if len(bytes.TrimSpace(part)) == 0 {
			continue
		}
		frames = append(frames, part)
	}
	return frames
}

// ExtractFrames returns the complete frames contained in buf along with the
// unterminated remainder. A single transport read may carry zero, one, or
// several concatenated frames plus a partial one.
func ExtractFrames(buf []byte) (frames [][]byte, rest []byte) {
	idx := bytes.LastIndexByte(buf, terminator)
	if idx < 0 {
		return nil, buf
	}
	return SplitFrames(buf[:idx+1]), buf[idx+1:]
}
