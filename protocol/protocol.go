package protocol

import "fmt"

/*
The protocol is byte oriented. The host sends a single command byte and waits
for the reply before it sends the next byte of consequence. While a firmware
write session is active the host alternates between a write sub-command and a
raw 1024 byte chunk of payload:

	host: BootloaderEraseAndWriteProgram   dev: CommandReplyOK
	host: ComputerBootloaderWriteMore      dev: BootloaderWriteOK
	host: <1024 payload bytes>             dev: BootloaderWriteOK
	...
	host: ComputerBootloaderFinish         dev: BootloaderWriteOK
*/

// ChunkSize is the number of payload bytes transferred and committed at once.
const ChunkSize = 1024

type Command byte

const (
	EnterWaitingMode               Command = 0x00
	DoElectricalTest               Command = 0x01
	IdentifyChips                  Command = 0x02
	ReadByte                       Command = 0x03
	ReadChips                      Command = 0x04
	EraseChips                     Command = 0x05
	WriteChips                     Command = 0x06
	GetBootloaderState             Command = 0x07
	EnterBootloader                Command = 0x08
	EnterProgrammer                Command = 0x09
	BootloaderEraseAndWriteProgram Command = 0x0a
	SetSIMMTypePLCC32_2MB          Command = 0x0b
	SetSIMMTypeLarge               Command = 0x0c
	ErasePortion                   Command = 0x0d
	WriteChipsAt                   Command = 0x0e
	ReadChipsAt                    Command = 0x0f
	SetChipsMask                   Command = 0x10
)

func (c Command) String() string {
	switch c {
	case EnterWaitingMode:
		return "ENTER WAITING MODE"
	case DoElectricalTest:
		return "DO ELECTRICAL TEST"
	case IdentifyChips:
		return "IDENTIFY CHIPS"
	case ReadByte:
		return "READ BYTE"
	case ReadChips:
		return "READ CHIPS"
	case EraseChips:
		return "ERASE CHIPS"
	case WriteChips:
		return "WRITE CHIPS"
	case GetBootloaderState:
		return "GET BOOTLOADER STATE"
	case EnterBootloader:
		return "ENTER BOOTLOADER"
	case EnterProgrammer:
		return "ENTER PROGRAMMER"
	case BootloaderEraseAndWriteProgram:
		return "BOOTLOADER ERASE AND WRITE PROGRAM"
	case SetSIMMTypePLCC32_2MB:
		return "SET SIMM TYPE PLCC32 2MB"
	case SetSIMMTypeLarge:
		return "SET SIMM TYPE LARGE"
	case ErasePortion:
		return "ERASE PORTION"
	case WriteChipsAt:
		return "WRITE CHIPS AT"
	case ReadChipsAt:
		return "READ CHIPS AT"
	case SetChipsMask:
		return "SET CHIPS MASK"
	}
	return fmt.Sprintf("Unknown command %02x", byte(c))
}

// IsBootloaderCommand reports whether the bootloader itself acts on c. All
// other codes belong to the programmer firmware and are answered with
// CommandReplyInvalid while the bootloader runs.
func (c Command) IsBootloaderCommand() bool {
	switch c {
	case GetBootloaderState, EnterBootloader, EnterProgrammer, BootloaderEraseAndWriteProgram:
		return true
	}
	return false
}

type Reply byte

const (
	CommandReplyOK      Reply = 0x00
	CommandReplyError   Reply = 0x01
	CommandReplyInvalid Reply = 0x02
)

func (r Reply) String() string {
	switch r {
	case CommandReplyOK:
		return "OK"
	case CommandReplyError:
		return "ERROR"
	case CommandReplyInvalid:
		return "INVALID"
	}
	return fmt.Sprintf("Unknown reply %02x", byte(r))
}

// StateReply follows CommandReplyOK in the answer to GetBootloaderState.
type StateReply byte

const (
	BootloaderStateInBootloader StateReply = 0x00
	BootloaderStateInProgrammer StateReply = 0x01
)

func (s StateReply) String() string {
	switch s {
	case BootloaderStateInBootloader:
		return "IN BOOTLOADER"
	case BootloaderStateInProgrammer:
		return "IN PROGRAMMER"
	}
	return fmt.Sprintf("Unknown bootloader state %02x", byte(s))
}

// WriteRequest is sent by the host between chunks of a write session.
type WriteRequest byte

const (
	ComputerBootloaderWriteMore WriteRequest = 0x00
	ComputerBootloaderFinish    WriteRequest = 0x01
	ComputerBootloaderCancel    WriteRequest = 0x02
)

func (w WriteRequest) String() string {
	switch w {
	case ComputerBootloaderWriteMore:
		return "WRITE MORE"
	case ComputerBootloaderFinish:
		return "FINISH"
	case ComputerBootloaderCancel:
		return "CANCEL"
	}
	return fmt.Sprintf("Unknown write request %02x", byte(w))
}

// WriteReply answers a WriteRequest or a completed chunk.
type WriteReply byte

const (
	BootloaderWriteOK            WriteReply = 0x00
	BootloaderWriteError         WriteReply = 0x01
	BootloaderWriteConfirmCancel WriteReply = 0x02
)

func (w WriteReply) String() string {
	switch w {
	case BootloaderWriteOK:
		return "WRITE OK"
	case BootloaderWriteError:
		return "WRITE ERROR"
	case BootloaderWriteConfirmCancel:
		return "WRITE CONFIRM CANCEL"
	}
	return fmt.Sprintf("Unknown write reply %02x", byte(w))
}
