package telnet

// sequenceLength returns the length of the control sequence starting at
// data[0] (which must be IAC), or 0 if data ends before the sequence does.
// A subnegotiation broken by IAC followed by anything but SE or IAC is not
// a subnegotiation: only its IAC SB counts, as an unknown command.
func sequenceLength(data []byte) int {
	if len(data) < 2 {
		return 0
	}

	switch data[1] {
	case DO, DONT, WILL, WONT:
		if len(data) < 3 {
			return 0
		}
		return 3
	case SB:
		for i := 2; i+1 < len(data); i++ {
			if data[i] != IAC {
				continue
			}
			switch data[i+1] {
			case SE:
				return i + 2
			case IAC:
				// Doubled 255s in the payload are data, skip over the pair
				i++
			default:
				return 2
			}
		}
		return 0
	default:
		return 2
	}
}

// Incomplete returns how many bytes at the end of data belong to a control
// sequence that has not been terminated yet. It returns 0 when data can be
// decoded as-is.
func Incomplete(data []byte) int {
	for i := 0; i < len(data); {
		if data[i] != IAC {
			i++
			continue
		}

		n := sequenceLength(data[i:])
		if n == 0 {
			return len(data) - i
		}
		i += n
	}

	return 0
}
