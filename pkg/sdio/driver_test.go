package sdio

//go:generate mockgen -destination mock_test.go -package sdio -write_package_comment=false github.com/gregLibert/sd-card/pkg/ios Channel,Opener

import (
	"errors"
	"testing"

	"github.com/gregLibert/sd-card/pkg/ios"
	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
	"github.com/gregLibert/sd-card/pkg/tlv"
	"go.uber.org/mock/gomock"
)

const testRCA uint16 = 0xB368

var rcaArg = sdcmd.RCAArg(testRCA)

// cmdMatcher matches an encoded request descriptor.
type cmdMatcher struct {
	want sdcmd.Command
}

func (m cmdMatcher) Matches(x any) bool {
	b, ok := x.([]byte)
	if !ok {
		return false
	}
	got, err := sdcmd.ParseCommand(b)
	return err == nil && got == m.want
}

func (m cmdMatcher) String() string {
	return "is " + m.want.String()
}

func isCommand(op sdcmd.Opcode, rsp sdcmd.ResponseType, arg uint32) gomock.Matcher {
	return cmdMatcher{sdcmd.NewCommand(op, sdcmd.TypeAC, rsp, arg)}
}

// blockMatcher matches the vector list of a single-block DMA exchange.
type blockMatcher struct {
	want sdcmd.Command
}

func (m blockMatcher) Matches(x any) bool {
	vecs, ok := x.([][]byte)
	if !ok || len(vecs) != 3 {
		return false
	}
	return cmdMatcher(m).Matches(vecs[0]) &&
		len(vecs[1]) == sdcmd.BlockSize && ios.Aligned(vecs[1]) &&
		len(vecs[2]) == sdcmd.ResponseSize
}

func (m blockMatcher) String() string {
	return "is DMA " + m.want.String()
}

func isBlock(op sdcmd.Opcode, sector uint32) gomock.Matcher {
	return blockMatcher{sdcmd.Command{
		Opcode:     op,
		Type:       sdcmd.TypeAC,
		Response:   sdcmd.ResponseR1,
		Arg:        sector * sdcmd.BlockSize,
		BlockCount: 1,
		BlockSize:  sdcmd.BlockSize,
		IsDMA:      true,
	}}
}

func hostQuery(reg, value uint8) []byte {
	buf := make([]byte, sdcmd.HostQuerySize)
	_ = sdcmd.NewHostQuery(reg, value).Encode(buf)
	return buf
}

type fixture struct {
	opener *MockOpener
	ch     *MockChannel
	drv    *Driver
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		opener: NewMockOpener(ctrl),
		ch:     NewMockChannel(ctrl),
	}
	f.drv = New(f.opener, Options{Logger: logging.Discard()})
	return f
}

// attach gives the driver a running session without bring-up.
func (f *fixture) attach(t *testing.T) {
	t.Helper()
	heap, err := ios.NewHeap(DefaultHeapSize)
	if err != nil {
		t.Fatalf("NewHeap: %v", err)
	}
	f.drv.heap = heap
	f.drv.ch = f.ch
	f.drv.rca = testRCA
	f.drv.initialized = true
}

func (f *fixture) expectReset() *gomock.Call {
	return f.ch.EXPECT().Ioctl(sdcmd.IoctlResetCard, gomock.Nil(), gomock.Len(4)).
		DoAndReturn(func(_ uint32, _, out []byte) int32 {
			sdcmd.PutWord(out, uint32(testRCA)<<16|0x0700)
			return 0
		})
}

func (f *fixture) expectHostRead(value uint8) *gomock.Call {
	return f.ch.EXPECT().Ioctl(sdcmd.IoctlReadHostRegister, hostQuery(sdcmd.HostControl, 0), gomock.Len(4)).
		DoAndReturn(func(_ uint32, _, out []byte) int32 {
			sdcmd.PutWord(out, uint32(value))
			return 0
		})
}

func (f *fixture) expectHostWrite(value uint8) *gomock.Call {
	return f.ch.EXPECT().Ioctl(sdcmd.IoctlWriteHostRegister, hostQuery(sdcmd.HostControl, value), gomock.Nil()).
		Return(int32(0))
}

func (f *fixture) expectClock() *gomock.Call {
	return f.ch.EXPECT().Ioctl(sdcmd.IoctlSetClock, tlv.Hex("00000001"), gomock.Nil()).Return(int32(0))
}

func (f *fixture) expectCommand(op sdcmd.Opcode, rsp sdcmd.ResponseType, arg uint32) *gomock.Call {
	return f.ch.EXPECT().Ioctl(sdcmd.IoctlSendCommand, isCommand(op, rsp, arg), gomock.Len(sdcmd.ResponseSize)).
		Return(int32(0))
}

func (f *fixture) expectSelect() *gomock.Call {
	return f.expectCommand(sdcmd.CMD_SELECT_CARD, sdcmd.ResponseR1B, rcaArg)
}

func (f *fixture) expectDeselect() *gomock.Call {
	return f.expectCommand(sdcmd.CMD_DESELECT_CARD, sdcmd.ResponseR1B, 0)
}

func (f *fixture) expectStartup(hostControl uint8) []any {
	return []any{
		f.opener.EXPECT().Open(DefaultDevicePath, ios.ModeRead).Return(f.ch, nil),
		f.expectReset(),
		f.expectHostRead(hostControl),
		f.expectHostWrite(hostControl | sdcmd.HostControl4Bit),
		f.expectClock(),
		f.expectSelect(),
		f.expectCommand(sdcmd.CMD_SET_BLOCKLEN, sdcmd.ResponseR1, sdcmd.BlockSize),
		f.expectCommand(sdcmd.CMD_APP_CMD, sdcmd.ResponseR1, rcaArg),
		f.expectCommand(sdcmd.ACMD_SET_BUS_WIDTH, sdcmd.ResponseR1, 2),
		f.expectDeselect(),
	}
}

func TestStartup_Sequence(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(f.expectStartup(0x00)...)

	if err := f.drv.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if !f.drv.IsInserted() {
		t.Error("IsInserted() should be true after Startup")
	}
	if f.drv.RCA() != testRCA {
		t.Errorf("RCA() = %04X; want %04X", f.drv.RCA(), testRCA)
	}
	if n := f.drv.Heap().InUse(); n != 0 {
		t.Errorf("heap in use after Startup: %d bytes", n)
	}

	// A second call must not touch the channel.
	if err := f.drv.Startup(); err != nil {
		t.Fatalf("second Startup: %v", err)
	}

	f.ch.EXPECT().Close().Return(nil)
	if err := f.drv.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if f.drv.IsInserted() || f.drv.Heap() != nil {
		t.Error("Shutdown should reset the session")
	}
}

func TestStartup_Failures(t *testing.T) {
	tests := []struct {
		name   string
		expect func(f *fixture) []any
		is     error
	}{
		{
			name: "Open fails",
			expect: func(f *fixture) []any {
				return []any{f.opener.EXPECT().Open(DefaultDevicePath, ios.ModeRead).Return(nil, ios.ENOENT)}
			},
			is: ios.ENOENT,
		},
		{
			name: "Reset fails",
			expect: func(f *fixture) []any {
				return []any{
					f.opener.EXPECT().Open(DefaultDevicePath, ios.ModeRead).Return(f.ch, nil),
					f.ch.EXPECT().Ioctl(sdcmd.IoctlResetCard, gomock.Any(), gomock.Any()).Return(int32(ios.EINVAL)),
					f.ch.EXPECT().Close().Return(nil),
				}
			},
			is: ios.EINVAL,
		},
		{
			name: "Select fails: no deselect",
			expect: func(f *fixture) []any {
				return []any{
					f.opener.EXPECT().Open(DefaultDevicePath, ios.ModeRead).Return(f.ch, nil),
					f.expectReset(),
					f.expectHostRead(0),
					f.expectHostWrite(sdcmd.HostControl4Bit),
					f.expectClock(),
					f.expectSelect().Return(int32(ios.EQUEUEFULL)),
					f.ch.EXPECT().Close().DoAndReturn(func() error {
						if n := f.drv.Heap().InUse(); n != 0 {
							t.Errorf("heap in use at close: %d bytes", n)
						}
						return nil
					}),
				}
			},
			is: ios.EQUEUEFULL,
		},
		{
			name: "Block length fails: deselect once",
			expect: func(f *fixture) []any {
				return []any{
					f.opener.EXPECT().Open(DefaultDevicePath, ios.ModeRead).Return(f.ch, nil),
					f.expectReset(),
					f.expectHostRead(0),
					f.expectHostWrite(sdcmd.HostControl4Bit),
					f.expectClock(),
					f.expectSelect(),
					f.expectCommand(sdcmd.CMD_SET_BLOCKLEN, sdcmd.ResponseR1, sdcmd.BlockSize).Return(int32(-1)),
					f.expectDeselect(),
					f.ch.EXPECT().Close().Return(nil),
				}
			},
			is: ErrTransport,
		},
		{
			name: "Bus width fails: deselect once",
			expect: func(f *fixture) []any {
				return []any{
					f.opener.EXPECT().Open(DefaultDevicePath, ios.ModeRead).Return(f.ch, nil),
					f.expectReset(),
					f.expectHostRead(0),
					f.expectHostWrite(sdcmd.HostControl4Bit),
					f.expectClock(),
					f.expectSelect(),
					f.expectCommand(sdcmd.CMD_SET_BLOCKLEN, sdcmd.ResponseR1, sdcmd.BlockSize),
					f.expectCommand(sdcmd.CMD_APP_CMD, sdcmd.ResponseR1, rcaArg),
					f.expectCommand(sdcmd.ACMD_SET_BUS_WIDTH, sdcmd.ResponseR1, 2).Return(int32(ios.EINVAL)),
					f.expectDeselect(),
					f.ch.EXPECT().Close().Return(nil),
				}
			},
			is: ios.EINVAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			gomock.InOrder(tt.expect(f)...)

			err := f.drv.Startup()
			if err == nil {
				t.Fatal("Startup should fail")
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("error %v does not match %v", err, tt.is)
			}
			if !errors.Is(err, ErrTransport) {
				t.Errorf("error %v should match ErrTransport", err)
			}
			if f.drv.IsInserted() {
				t.Error("IsInserted() should be false after a failed Startup")
			}
			if f.drv.Heap() != nil {
				t.Error("heap should be released after a failed Startup")
			}
		})
	}
}

func TestSetHostBusWidth(t *testing.T) {
	tests := []struct {
		name    string
		initial uint8
		width   int
		want    uint8
	}{
		{"4-bit from clear", 0x00, 4, 0x02},
		{"4-bit keeps other bits", 0xF1, 4, 0xF3},
		{"1-bit clears flag only", 0xFF, 1, 0xFD},
		{"1-bit from clear", 0x41, 1, 0x41},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.attach(t)
			gomock.InOrder(f.expectHostRead(tt.initial), f.expectHostWrite(tt.want))

			if err := f.drv.setHostBusWidth(tt.width); err != nil {
				t.Fatalf("setHostBusWidth: %v", err)
			}
		})
	}
}

func TestHostRegister_Failure(t *testing.T) {
	f := newFixture(t)
	f.attach(t)
	f.ch.EXPECT().Ioctl(sdcmd.IoctlReadHostRegister, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ uint32, _, out []byte) int32 {
			out[3] = 0x55
			return int32(ios.EINVAL)
		})

	v, err := f.drv.HostRegister(sdcmd.HostControl)
	if v != 0 {
		t.Errorf("value on failure = %02X; want 0", v)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != int32(ios.EINVAL) || se.Op != "READHCREG" {
		t.Errorf("unexpected error %#v", err)
	}
	if f.drv.Heap().InUse() != 0 {
		t.Error("query block leaked")
	}
}

func TestSendCommand_ReplyGuard(t *testing.T) {
	rsp := tlv.Hex("00000900 11111111 22222222 33333333")

	tests := []struct {
		name  string
		reply []byte
		want  []byte
	}{
		{"Full descriptor", make([]byte, 16), rsp},
		{"Short reply", make([]byte, 4), rsp[:4]},
		{"Oversized reply is left alone", make([]byte, 20), make([]byte, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.attach(t)
			f.ch.EXPECT().Ioctl(sdcmd.IoctlSendCommand, gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ uint32, _, out []byte) int32 {
					for _, b := range out {
						if b != 0 {
							t.Error("response descriptor should be zeroed before the exchange")
							break
						}
					}
					copy(out, rsp)
					return 0
				})

			cmd := sdcmd.NewCommand(sdcmd.CMD_SEND_STATUS, sdcmd.TypeAC, sdcmd.ResponseR1, rcaArg)
			if _, err := f.drv.sendCommand(cmd, nil, tt.reply); err != nil {
				t.Fatalf("sendCommand: %v", err)
			}
			if string(tt.reply) != string(tt.want) {
				t.Errorf("reply = %X; want %X", tt.reply, tt.want)
			}
		})
	}
}

func TestSendCommand_OutOfResources(t *testing.T) {
	f := newFixture(t)
	f.attach(t)

	// Room for the request descriptor only.
	heap, err := ios.NewHeap(2 * ios.Align)
	if err != nil {
		t.Fatalf("NewHeap: %v", err)
	}
	f.drv.heap = heap

	_, err = f.drv.sendCommand(sdcmd.NewCommand(sdcmd.CMD_SEND_STATUS, sdcmd.TypeAC, sdcmd.ResponseR1, rcaArg), nil, nil)
	if !errors.Is(err, ErrOutOfResources) {
		t.Fatalf("error = %v; want ErrOutOfResources", err)
	}
	if heap.InUse() != 0 {
		t.Errorf("request descriptor leaked: %d bytes", heap.InUse())
	}
}

func TestSendCommand_NotOpen(t *testing.T) {
	f := newFixture(t)
	if _, err := f.drv.sendCommand(sdcmd.NewCommand(sdcmd.CMD_SELECT_CARD, sdcmd.TypeAC, sdcmd.ResponseR1B, 0), nil, nil); !errors.Is(err, ErrNotOpen) {
		t.Errorf("error = %v; want ErrNotOpen", err)
	}
	if _, err := f.drv.HostStatus(); !errors.Is(err, ErrTransport) {
		t.Errorf("HostStatus error = %v; want ErrTransport", err)
	}
}

func TestStatusError(t *testing.T) {
	err := checkStatus("SENDCMD", int32(ios.ENOMEM))
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ios.ENOMEM) {
		t.Errorf("%v should match ErrTransport and ENOMEM", err)
	}
	if errors.Is(err, ios.EINVAL) {
		t.Error("should not match another errno")
	}
	if got := err.Error(); got != "sdio: SENDCMD: ios: out of memory" {
		t.Errorf("Error() = %q", got)
	}
	if checkStatus("SENDCMD", 3) != nil {
		t.Error("non-negative status is a success")
	}
	if !errors.Is(ErrNotOpen, ErrTransport) {
		t.Error("ErrNotOpen should wrap ErrTransport")
	}
}

func TestShutdown_CloseError(t *testing.T) {
	f := newFixture(t)
	f.attach(t)
	f.ch.EXPECT().Close().Return(errors.New("channel busy"))

	if err := f.drv.Shutdown(); err != nil {
		t.Errorf("Shutdown() = %v; want nil", err)
	}
	if f.drv.IsInserted() {
		t.Error("session should be reset")
	}

	// Nothing left to release.
	if err := f.drv.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
	if err := f.drv.ClearStatus(); err != nil {
		t.Errorf("ClearStatus() = %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	d := New(nil, Options{})
	if d.DevicePath() != DefaultDevicePath || d.heapSize != DefaultHeapSize {
		t.Errorf("defaults = %q, %#x", d.DevicePath(), d.heapSize)
	}
	if d.ID().IsNil() {
		t.Error("session id should be set")
	}

	d = New(nil, Options{DevicePath: "/dev/sdio/slot1", HeapSize: 0x800})
	if d.DevicePath() != "/dev/sdio/slot1" || d.heapSize != 0x800 {
		t.Errorf("overrides = %q, %#x", d.DevicePath(), d.heapSize)
	}
}
