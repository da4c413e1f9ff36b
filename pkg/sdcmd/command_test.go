package sdcmd

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/sd-card/pkg/bits"
	"github.com/gregLibert/sd-card/pkg/tlv"
)

func TestCommand_Bytes(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []byte
	}{
		{
			name: "Select card (R1b, RCA in upper half)",
			cmd:  NewCommand(CMD_SELECT_CARD, TypeAC, ResponseR1B, RCAArg(0xB368)),
			expected: tlv.Hex(
				"00000007 00000003 00000002", // cmd, type AC, rsp R1b
				"B3680000",                   // arg = RCA << 16
				"00000000 00000000",          // blk_cnt, blk_size
				"00000000 00000000 00000000", // dma_addr, isdma, pad
			),
		},
		{
			name: "Deselect card",
			cmd:  NewCommand(CMD_DESELECT_CARD, TypeAC, ResponseR1B, 0),
			expected: tlv.Hex(
				"00000007 00000003 00000002 00000000",
				"00000000 00000000 00000000 00000000 00000000",
			),
		},
		{
			name: "Single block read through DMA",
			cmd: Command{
				Opcode:     CMD_READ_MULTIPLE_BLOCK,
				Type:       TypeAC,
				Response:   ResponseR1,
				Arg:        2 * BlockSize,
				BlockCount: 1,
				BlockSize:  BlockSize,
				IsDMA:      true,
			},
			expected: tlv.Hex(
				"00000012 00000003 00000001",
				"00000400",          // byte address of sector 2
				"00000001 00000200", // 1 x 512
				"00000000 00000001 00000000",
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cmd.Bytes()
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Mismatch:\nExpected: %s\nGot:      %s",
					hex.EncodeToString(tt.expected),
					hex.EncodeToString(got))
			}

			back, err := ParseCommand(got)
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if diff := cmp.Diff(tt.cmd, back); diff != "" {
				t.Errorf("ParseCommand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommand_EncodeErrors(t *testing.T) {
	cmd := NewCommand(CMD_SEND_STATUS, TypeAC, ResponseR1, RCAArg(1))
	if err := cmd.Encode(make([]byte, RequestSize-1)); err == nil {
		t.Error("Encode into short buffer should fail")
	}

	if _, err := ParseCommand(make([]byte, 8)); err == nil {
		t.Error("ParseCommand on short input should fail")
	}

	bad := cmd.Bytes()
	bad[31] = 7 // isdma must be 0 or 1
	if _, err := ParseCommand(bad); err == nil {
		t.Error("ParseCommand should reject an invalid isdma flag")
	}
}

func TestCommand_String(t *testing.T) {
	cmd := Command{
		Opcode:     CMD_WRITE_MULTIPLE_BLOCK,
		Type:       TypeAC,
		Response:   ResponseR1,
		Arg:        0x200,
		BlockCount: 1,
		BlockSize:  BlockSize,
		IsDMA:      true,
	}

	desc := cmd.String()
	for _, part := range []string{"CMD25 (0x19) CMD_WRITE_MULTIPLE_BLOCK", "Type: AC", "Rsp: R1", "Arg: 00000200", "DMA: 1x512"} {
		if !strings.Contains(desc, part) {
			t.Errorf("String() = %q; want containing %q", desc, part)
		}
	}

	if s := Opcode(0x2A).String(); s != "Opcode(42)" {
		t.Errorf("unknown opcode String() = %q", s)
	}
	if s := ResponseType(9).String(); s != "ResponseType(9)" {
		t.Errorf("unknown response String() = %q", s)
	}
}

func TestResponse(t *testing.T) {
	raw := tlv.Hex("00000900 11223344 55667788 99AABBCC")

	r, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if r.CardStatus().State() != StateTran {
		t.Errorf("State() = %s; want tran", r.CardStatus().State())
	}
	if !r.CardStatus().Has(StatusReadyForData) {
		t.Error("READY_FOR_DATA should be set")
	}

	reg := r.Register()
	if !bytes.Equal(reg[:], raw) {
		t.Errorf("Register() = %X; want %X", reg, raw)
	}

	if _, err := ParseResponse(raw[:15]); err == nil {
		t.Error("ParseResponse on short input should fail")
	}
}

func TestHostQuery(t *testing.T) {
	if b := bits.Bit(HostControlWidthBit); b != HostControl4Bit {
		t.Fatalf("bits.Bit(HostControlWidthBit) = %02X; want %02X", b, HostControl4Bit)
	}

	q := NewHostQuery(HostControl, HostControl4Bit)

	buf := make([]byte, HostQuerySize)
	if err := q.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	expected := tlv.Hex("00000028 00000000 00000000 00000001 00000002 00000000")
	if !bytes.Equal(buf, expected) {
		t.Errorf("Mismatch:\nExpected: %X\nGot:      %X", expected, buf)
	}

	back, err := ParseHostQuery(buf)
	if err != nil {
		t.Fatalf("ParseHostQuery: %v", err)
	}
	if diff := cmp.Diff(q, back); diff != "" {
		t.Errorf("ParseHostQuery mismatch (-want +got):\n%s", diff)
	}

	buf[2] = 0x01 // register 0x0128
	if _, err := ParseHostQuery(buf); err == nil {
		t.Error("ParseHostQuery should reject registers above 0xFF")
	}
}

func TestIoctlName(t *testing.T) {
	if n := IoctlName(IoctlSendCommand); n != "SENDCMD" {
		t.Errorf("IoctlName(SENDCMD) = %q", n)
	}
	if n := IoctlName(0x42); n != "UNKNOWN" {
		t.Errorf("IoctlName(0x42) = %q", n)
	}
}
