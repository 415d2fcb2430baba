// Package protocol implements the SOA wire format shared by every
// service in the platform: a fixed-width length prefix, a five
// character service tag and a JSON payload.
//
// Frame layout:
//
//	LEN(5 ASCII digits, zero-padded) || TAG(5 chars, space-padded) || PAYLOAD(JSON)
//
// LEN is the byte length of TAG plus PAYLOAD. The codec moves bytes
// and validates JSON shape only; payload semantics belong to the
// router and its handlers.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// TagLength is the fixed width of the service tag field.
const TagLength = 5

// headerLength is the combined width of the length and tag fields.
// A valid frame is never shorter than this.
const headerLength = 10

// MaxFrameSize is the largest value the five-digit length field can
// carry: tag plus payload can never exceed 99999 bytes.
const MaxFrameSize = 99999

// FrameErrorKind classifies framing failures.
type FrameErrorKind int

const (
	// TooShort: fewer than 10 bytes were available.
	TooShort FrameErrorKind = iota
	// BadLength: the length field is not five ASCII digits.
	BadLength
	// BadPayload: the payload is not valid JSON.
	BadPayload
)

// FrameError reports a malformed frame. A FrameError on a stream
// means the connection can no longer be resynchronized and must be
// closed; domain errors, by contrast, travel inside response payloads
// and leave the connection usable.
type FrameError struct {
	Kind   FrameErrorKind
	Detail string
}

func (e *FrameError) Error() string {
	switch e.Kind {
	case TooShort:
		return "frame too short: " + e.Detail
	case BadLength:
		return "bad length field: " + e.Detail
	case BadPayload:
		return "bad payload: " + e.Detail
	}
	return "frame error: " + e.Detail
}

// PadTag right-pads or truncates a service tag to exactly TagLength
// characters, matching how every service writes its tag field.
func PadTag(tag string) string {
	if len(tag) >= TagLength {
		return tag[:TagLength]
	}
	for len(tag) < TagLength {
		tag += " "
	}
	return tag
}

// Encode builds a complete frame for the given tag and payload. The
// payload is marshaled to JSON; nil encodes as an empty object. The
// tag is padded/truncated to five characters and the length field is
// recomputed from the emitted bytes, never caller-supplied.
func Encode(tag string, payload any) ([]byte, error) {
	var body []byte
	if payload == nil {
		body = []byte("{}")
	} else {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode frame payload: %w", err)
		}
	}
	if TagLength+len(body) > MaxFrameSize {
		return nil, fmt.Errorf("frame payload too large: %d bytes", len(body))
	}

	frame := make([]byte, 0, headerLength+len(body))
	frame = append(frame, fmt.Sprintf("%05d", TagLength+len(body))...)
	frame = append(frame, PadTag(tag)...)
	frame = append(frame, body...)
	return frame, nil
}

// Decode splits a raw frame into its service tag and payload bytes.
// The tag is returned exactly as framed (five characters, space
// padded); callers that dispatch on it should trim it first. An empty
// payload decodes to an empty JSON object. The length field is parsed
// for well-formedness but the payload is taken from the remaining
// bytes, so a frame whose producer miscounted still decodes.
func Decode(data []byte) (tag string, payload []byte, err error) {
	if len(data) < headerLength {
		return "", nil, &FrameError{Kind: TooShort, Detail: fmt.Sprintf("%d bytes", len(data))}
	}
	if _, err := parseLength(data[:TagLength]); err != nil {
		return "", nil, err
	}
	tag = string(data[TagLength:headerLength])
	payload = data[headerLength:]
	if len(payload) == 0 {
		return tag, []byte("{}"), nil
	}
	if !json.Valid(payload) {
		return "", nil, &FrameError{Kind: BadPayload, Detail: "payload is not valid JSON"}
	}
	return tag, payload, nil
}

// ReadFrame reads exactly one frame from r: the five length digits,
// then that many bytes of tag and payload. Returns io.EOF untouched
// when the stream closes cleanly between frames; a stream that ends
// mid-frame yields a TooShort FrameError.
func ReadFrame(r io.Reader) (tag string, payload []byte, err error) {
	var lengthField [TagLength]byte
	n, err := io.ReadFull(r, lengthField[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return "", nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return "", nil, &FrameError{Kind: TooShort, Detail: "stream ended inside length field"}
		}
		return "", nil, fmt.Errorf("read frame length: %w", err)
	}

	length, err := parseLength(lengthField[:])
	if err != nil {
		return "", nil, err
	}
	if length < TagLength {
		return "", nil, &FrameError{Kind: BadLength, Detail: fmt.Sprintf("length %d below tag width", length)}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return "", nil, &FrameError{Kind: TooShort, Detail: "stream ended inside frame body"}
		}
		return "", nil, fmt.Errorf("read frame body: %w", err)
	}

	tag = string(body[:TagLength])
	payload = body[TagLength:]
	if len(payload) == 0 {
		return tag, []byte("{}"), nil
	}
	if !json.Valid(payload) {
		return "", nil, &FrameError{Kind: BadPayload, Detail: "payload is not valid JSON"}
	}
	return tag, payload, nil
}

// WriteFrame encodes tag and payload and writes the frame to w.
func WriteFrame(w io.Writer, tag string, payload any) error {
	frame, err := Encode(tag, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// parseLength interprets the five-digit length field. Anything other
// than ASCII digits is a BadLength error: the stream cannot be
// resynchronized once the prefix is garbage.
func parseLength(field []byte) (int, error) {
	length := 0
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0, &FrameError{Kind: BadLength, Detail: fmt.Sprintf("%q is not numeric", field)}
		}
		length = length*10 + int(c-'0')
	}
	return length, nil
}
