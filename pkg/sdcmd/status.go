package sdcmd

import (
	"fmt"
	"strings"
)

// R1 Card Status Logic:
//
// Every R1/R1b response carries the 32-bit card status register. It mixes
// three kinds of information:
//
// 1. Error flags (bits 31-19, 16, 15, 3): set by the command that caused
//    them and cleared when the status is read.
//
// 2. CURRENT_STATE (bits 12-9): the card state machine position when the
//    command was received (idle, ready, ident, stby, tran, data, rcv, prg,
//    dis).
//
// 3. Informational flags: READY_FOR_DATA (bit 8) and APP_CMD (bit 5), the
//    latter confirming that the next command is read as an ACMD.

// CardStatus is the R1 card status register.
type CardStatus uint32

// Card status bits.
const (
	StatusOutOfRange      CardStatus = 1 << 31
	StatusAddressError    CardStatus = 1 << 30
	StatusBlockLenError   CardStatus = 1 << 29
	StatusEraseSeqError   CardStatus = 1 << 28
	StatusEraseParam      CardStatus = 1 << 27
	StatusWPViolation     CardStatus = 1 << 26
	StatusCardIsLocked    CardStatus = 1 << 25
	StatusLockUnlockFail  CardStatus = 1 << 24
	StatusComCRCError     CardStatus = 1 << 23
	StatusIllegalCommand  CardStatus = 1 << 22
	StatusCardECCFailed   CardStatus = 1 << 21
	StatusCCError         CardStatus = 1 << 20
	StatusError           CardStatus = 1 << 19
	StatusCSDOverwrite    CardStatus = 1 << 16
	StatusWPEraseSkip     CardStatus = 1 << 15
	StatusCardECCDisabled CardStatus = 1 << 14
	StatusEraseReset      CardStatus = 1 << 13
	StatusReadyForData    CardStatus = 1 << 8
	StatusAppCmd          CardStatus = 1 << 5
	StatusAKESeqError     CardStatus = 1 << 3

	statusErrorMask = StatusOutOfRange | StatusAddressError | StatusBlockLenError |
		StatusEraseSeqError | StatusEraseParam | StatusWPViolation | StatusLockUnlockFail |
		StatusComCRCError | StatusIllegalCommand | StatusCardECCFailed | StatusCCError |
		StatusError | StatusCSDOverwrite | StatusAKESeqError
)

// CardState is the CURRENT_STATE field of the card status.
type CardState uint8

const (
	StateIdle  CardState = 0
	StateReady CardState = 1
	StateIdent CardState = 2
	StateStby  CardState = 3
	StateTran  CardState = 4
	StateData  CardState = 5
	StateRcv   CardState = 6
	StatePrg   CardState = 7
	StateDis   CardState = 8
)

func (s CardState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateIdent:
		return "ident"
	case StateStby:
		return "stby"
	case StateTran:
		return "tran"
	case StateData:
		return "data"
	case StateRcv:
		return "rcv"
	case StatePrg:
		return "prg"
	case StateDis:
		return "dis"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(s))
	}
}

// NewCardStatus builds a status word for the given state and flags.
func NewCardStatus(state CardState, flags CardStatus) CardStatus {
	return flags&^(0xF<<9) | CardStatus(state&0xF)<<9
}

// State returns CURRENT_STATE.
func (s CardStatus) State() CardState {
	return CardState((s >> 9) & 0xF)
}

// Has reports whether every bit of flag is set.
func (s CardStatus) Has(flag CardStatus) bool {
	return s&flag == flag
}

// IsError reports whether any error flag is set.
func (s CardStatus) IsError() bool {
	return s&statusErrorMask != 0
}

var statusFlagNames = []struct {
	flag CardStatus
	name string
}{
	{StatusOutOfRange, "OUT_OF_RANGE"},
	{StatusAddressError, "ADDRESS_ERROR"},
	{StatusBlockLenError, "BLOCK_LEN_ERROR"},
	{StatusEraseSeqError, "ERASE_SEQ_ERROR"},
	{StatusEraseParam, "ERASE_PARAM"},
	{StatusWPViolation, "WP_VIOLATION"},
	{StatusCardIsLocked, "CARD_IS_LOCKED"},
	{StatusLockUnlockFail, "LOCK_UNLOCK_FAILED"},
	{StatusComCRCError, "COM_CRC_ERROR"},
	{StatusIllegalCommand, "ILLEGAL_COMMAND"},
	{StatusCardECCFailed, "CARD_ECC_FAILED"},
	{StatusCCError, "CC_ERROR"},
	{StatusError, "ERROR"},
	{StatusCSDOverwrite, "CSD_OVERWRITE"},
	{StatusWPEraseSkip, "WP_ERASE_SKIP"},
	{StatusCardECCDisabled, "CARD_ECC_DISABLED"},
	{StatusEraseReset, "ERASE_RESET"},
	{StatusReadyForData, "READY_FOR_DATA"},
	{StatusAppCmd, "APP_CMD"},
	{StatusAKESeqError, "AKE_SEQ_ERROR"},
}

// Verbose returns a human-readable description of the status.
func (s CardStatus) Verbose() string {
	var flags []string
	for _, f := range statusFlagNames {
		if s.Has(f.flag) {
			flags = append(flags, f.name)
		}
	}

	desc := fmt.Sprintf("[%08X] State: %s", uint32(s), s.State())
	if len(flags) > 0 {
		desc += " | " + strings.Join(flags, ", ")
	}
	return desc
}
