package comport

// RFC-2217 Subnegotiation commands (client to server)
const (
	Signature         byte = 0
	SetBaudrate       byte = 1
	SetDatasize       byte = 2
	SetParity         byte = 3
	SetStopsize       byte = 4
	SetControl        byte = 5
	NotifyLinestate   byte = 6
	NotifyModemstate  byte = 7
	FlowControlSusp   byte = 8
	FlowControlRes    byte = 9
	SetLinestateMask  byte = 10
	SetModemstateMask byte = 11
	PurgeData         byte = 12
)

// Server responses use command code + 100
const ServerResponseOffset byte = 100

// Stop bits values
const (
	StopBits1   uint8 = 1
	StopBits2   uint8 = 2
	StopBits1_5 uint8 = 3
)

// Defaults applied to absent parameter fields
const (
	DefaultBaud     uint32 = 115200
	DefaultDataBits uint8  = 8
	DefaultStopBits uint8  = StopBits1
)

var commandNames = map[byte]string{
	Signature:         "SIGNATURE",
	SetBaudrate:       "SET-BAUDRATE",
	SetDatasize:       "SET-DATASIZE",
	SetParity:         "SET-PARITY",
	SetStopsize:       "SET-STOPSIZE",
	SetControl:        "SET-CONTROL",
	NotifyLinestate:   "NOTIFY-LINESTATE",
	NotifyModemstate:  "NOTIFY-MODEMSTATE",
	FlowControlSusp:   "FLOWCONTROL-SUSPEND",
	FlowControlRes:    "FLOWCONTROL-RESUME",
	SetLinestateMask:  "SET-LINESTATE-MASK",
	SetModemstateMask: "SET-MODEMSTATE-MASK",
	PurgeData:         "PURGE-DATA",
}
