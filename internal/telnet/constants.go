package telnet

import "strconv"

// Telnet protocol constants
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	GA   byte = 249 // Go Ahead
	EL   byte = 248 // Erase Line
	EC   byte = 247 // Erase Character
	AYT  byte = 246 // Are You There
	AO   byte = 245 // Abort Output
	IP   byte = 244 // Interrupt Process
	BRK  byte = 243 // Break
	DM   byte = 242 // Data Mark
	NOP  byte = 241 // No Operation
	SE   byte = 240 // Subnegotiation End
)

// Option is a Telnet option code as carried after DO/DONT/WILL/WONT/SB.
type Option byte

// Options this client knows by name
const (
	OptBinary          Option = 0
	OptEcho            Option = 1
	OptSuppressGoAhead Option = 3
	OptComPort         Option = 44 // COM-PORT-OPTION (RFC 2217)
)

var commandNames = map[byte]string{
	IAC:  "IAC",
	DONT: "DONT",
	DO:   "DO",
	WONT: "WONT",
	WILL: "WILL",
	SB:   "SB",
	GA:   "GA",
	EL:   "EL",
	EC:   "EC",
	AYT:  "AYT",
	AO:   "AO",
	IP:   "IP",
	BRK:  "BRK",
	DM:   "DM",
	NOP:  "NOP",
	SE:   "SE",
}

var optionNames = map[Option]string{
	OptBinary:          "BINARY",
	OptEcho:            "ECHO",
	OptSuppressGoAhead: "SUPPRESS-GO-AHEAD",
	OptComPort:         "COM-PORT-OPTION",
}

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return strconv.Itoa(int(o))
}

func commandName(b byte) string {
	if name, ok := commandNames[b]; ok {
		return name
	}
	return strconv.Itoa(int(b))
}
