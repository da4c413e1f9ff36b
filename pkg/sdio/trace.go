package sdio

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/gregLibert/sd-card/pkg/ios"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
	"github.com/gregLibert/sd-card/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// TRANSACTION:
// A Transaction is one request on the coprocessor channel: an Ioctl, or an
// Ioctlv whose first vector is the input block. For SENDCMD the input block
// is the request descriptor, the payload is the DMA vector and the output
// is the response descriptor.
//
// TRACE:
// A Trace is the chronological list of transactions of a session. A single
// ReadSectors call produces select, one exchange per sector, then deselect.
//
// Traces persist as BER-TLV, one constructed record per transaction:
//
//	E1
//	  80 request code (4 bytes)
//	  81 input block
//	  82 payload, omitted when absent
//	  83 output block
//	  84 status (4 bytes, signed)

// TraceTag is the record tag of a persisted transaction.
const TraceTag = "E1"

// Transaction is one recorded channel request.
type Transaction struct {
	Request uint32 `tlv:"80"`
	Input   []byte `tlv:"81"`
	Payload []byte `tlv:"82"`
	Output  []byte `tlv:"83"`
	Status  int32  `tlv:"84"`
}

// IsSuccess reports whether the coprocessor accepted the request.
func (t *Transaction) IsSuccess() bool {
	return t.Status >= 0
}

// Command decodes the request descriptor of a SENDCMD transaction.
func (t *Transaction) Command() (sdcmd.Command, bool) {
	if t.Request != sdcmd.IoctlSendCommand {
		return sdcmd.Command{}, false
	}
	cmd, err := sdcmd.ParseCommand(t.Input)
	if err != nil {
		return sdcmd.Command{}, false
	}
	return cmd, true
}

// Describe returns a one-line summary of the transaction.
func (t *Transaction) Describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s", sdcmd.IoctlName(t.Request)))

	if cmd, ok := t.Command(); ok {
		sb.WriteString(" " + cmd.String())
		r1 := cmd.Response == sdcmd.ResponseR1 || cmd.Response == sdcmd.ResponseR1B
		if rsp, err := sdcmd.ParseResponse(t.Output); err == nil && r1 && t.IsSuccess() {
			sb.WriteString(" -> " + rsp.CardStatus().Verbose())
		}
	} else {
		if len(t.Input) > 0 {
			sb.WriteString(fmt.Sprintf(" in=%X", t.Input))
		}
		if len(t.Output) > 0 {
			sb.WriteString(fmt.Sprintf(" out=%X", t.Output))
		}
	}

	if t.IsSuccess() {
		sb.WriteString(fmt.Sprintf(" = %d", t.Status))
	} else {
		sb.WriteString(fmt.Sprintf(" = %v", ios.Errno(t.Status)))
	}
	return sb.String()
}

// Trace is a sequence of transactions.
type Trace []Transaction

// Last returns the final transaction, or nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// Commands returns the SD commands of the trace in order.
func (t Trace) Commands() []sdcmd.Command {
	var cmds []sdcmd.Command
	for i := range t {
		if cmd, ok := t[i].Command(); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Describe generates a human-readable report of the trace.
func (t Trace) Describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== TRACE (%d transactions) ===\n", len(t)))
	for i := range t {
		sb.WriteString(fmt.Sprintf("%4d  %s\n", i, t[i].Describe()))
	}
	return sb.String()
}

// MarshalTLV encodes the trace as BER-TLV records.
func (t Trace) MarshalTLV() ([]byte, error) {
	records := make([]bertlv.TLV, 0, len(t))
	for i := range t {
		rec, err := tlv.Marshal(TraceTag, t[i])
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return bertlv.Encode(records)
}

// ParseTrace decodes a trace written by MarshalTLV.
func ParseTrace(data []byte) (Trace, error) {
	records, err := tlv.Split(data, TraceTag)
	if err != nil {
		return nil, err
	}

	t := make(Trace, 0, len(records))
	for i, rec := range records {
		var tx Transaction
		if err := tlv.UnmarshalFromPackets(rec.TLVs, &tx); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		t = append(t, tx)
	}
	return t, nil
}

// Recorder captures the exchanges of the channels it wraps.
type Recorder struct {
	mu    sync.Mutex
	trace Trace
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Wrap returns a channel recording every request made through it.
func (r *Recorder) Wrap(ch ios.Channel) ios.Channel {
	return &recordingChannel{Channel: ch, rec: r}
}

// Trace returns a copy of the recorded transactions.
func (r *Recorder) Trace() Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(Trace(nil), r.trace...)
}

// Reset discards the recorded transactions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = nil
}

func (r *Recorder) add(tx Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, tx)
}

type recordingChannel struct {
	ios.Channel
	rec *Recorder
}

func (c *recordingChannel) Ioctl(request uint32, in, out []byte) int32 {
	tx := Transaction{Request: request, Input: clone(in)}
	tx.Status = c.Channel.Ioctl(request, in, out)
	tx.Output = clone(out)
	c.rec.add(tx)
	return tx.Status
}

func (c *recordingChannel) Ioctlv(request uint32, inCount, outCount int, vecs [][]byte) int32 {
	tx := Transaction{Request: request}
	if inCount > 0 && len(vecs) > 0 {
		tx.Input = clone(vecs[0])
	}

	tx.Status = c.Channel.Ioctlv(request, inCount, outCount, vecs)

	// Data vectors are captured after the call so reads show what the card
	// returned.
	if inCount > 1 && len(vecs) >= inCount {
		tx.Payload = bytes.Join(vecs[1:inCount], nil)
	}
	if outCount > 0 && len(vecs) >= inCount+outCount {
		tx.Output = bytes.Join(vecs[inCount:inCount+outCount], nil)
	}
	c.rec.add(tx)
	return tx.Status
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
