package coupling

import (
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// protocolVersion guards against mismatched binaries on the two sides of
// the channel.
const protocolVersion = 1

// maxFrameSize bounds a single message on the wire. The largest legitimate
// frame is the vertex registration, one float64 per interface vertex and
// spatial dimension.
const maxFrameSize = 16 << 20

type messageKind uint8

const (
	kindHandshake messageKind = iota + 1
	kindHandshakeAck
	kindVertices
	kindData
)

// message is the single wire envelope; unused fields stay empty for a
// given kind.
type message struct {
	Kind messageKind `cbor:"kind"`

	// Handshake fields.
	Version     int    `cbor:"version,omitempty"`
	Participant string `cbor:"participant,omitempty"`
	Mesh        string `cbor:"mesh,omitempty"`
	Session     string `cbor:"session,omitempty"`

	// Vertex registration and data exchange fields.
	Window   int       `cbor:"window"`
	DataName string    `cbor:"data,omitempty"`
	Values   []float64 `cbor:"values,omitempty"`
}

// writeMessage encodes m as CBOR and writes it as a length-prefixed frame.
func writeMessage(w io.Writer, m message) error {
	payload, err := cbor.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "coupling: encode message")
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "coupling: write frame header")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "coupling: write frame payload")
	}
	return nil
}

// readMessage reads one length-prefixed CBOR frame.
func readMessage(r io.Reader) (message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return message{}, errors.Wrap(err, "coupling: read frame header")
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return message{}, errors.Errorf("coupling: frame of %d bytes exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return message{}, errors.Wrap(err, "coupling: read frame payload")
	}

	var m message
	if err := cbor.Unmarshal(payload, &m); err != nil {
		return message{}, errors.Wrap(err, "coupling: decode message")
	}
	return m, nil
}
