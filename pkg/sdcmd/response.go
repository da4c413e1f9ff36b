package sdcmd

import (
	"encoding/binary"
	"fmt"
)

// ResponseSize is the encoded size of a response descriptor.
const ResponseSize = 16

// Response holds the raw response words of one command.
type Response [4]uint32

// ParseResponse decodes a response descriptor.
func ParseResponse(raw []byte) (Response, error) {
	var r Response
	if len(raw) < ResponseSize {
		return r, fmt.Errorf("response descriptor too short: length %d", len(raw))
	}
	for i := range r {
		r[i] = binary.BigEndian.Uint32(raw[i*4:])
	}
	return r, nil
}

// Encode writes the response into dst, which must hold ResponseSize bytes.
func (r Response) Encode(dst []byte) error {
	if len(dst) < ResponseSize {
		return fmt.Errorf("response buffer too short: %d < %d", len(dst), ResponseSize)
	}
	for i, w := range r {
		binary.BigEndian.PutUint32(dst[i*4:], w)
	}
	return nil
}

// Bytes encodes the response into a new ResponseSize buffer.
func (r Response) Bytes() []byte {
	buf := make([]byte, ResponseSize)
	_ = r.Encode(buf)
	return buf
}

// CardStatus interprets the first word as an R1 card status.
func (r Response) CardStatus() CardStatus {
	return CardStatus(r[0])
}

// Register returns the 128-bit register carried by an R2 response.
func (r Response) Register() [16]byte {
	var reg [16]byte
	_ = r.Encode(reg[:])
	return reg
}
