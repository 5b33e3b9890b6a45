package telnet

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() (*Parser, *replyRecorder) {
	rec := &replyRecorder{}
	return NewParser(NewNegotiator(rec, nil), rec, nil), rec
}

func TestDecodeStripsCommands(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		data    string
		replies string
	}{
		{"plain", "41424344", "41424344", ""},
		{"escaped IAC", "41ffff42", "41ff42", ""},
		{"NOP", "41fff142", "4142", ""},
		{"DM IP AO BRK", "fff2fff4fff5fff341", "41", ""},
		{"AYT", "41fff6", "41", hex.EncodeToString([]byte("\r\n[Yes]\r\n"))},
		{"WILL SGA", "fffb0341", "41", "fffd03"},
		{"DO TTYPE", "41fffd1842", "4142", "fffc18"},
		{"unknown two byte", "41fff942", "4142", ""},
		{"unhandled SB", "41fffa1801fff042", "4142", ""},
		{"incomplete tail dropped", "4142fffa2c01", "4142", ""},
		{"lone IAC dropped", "41ff", "41", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rec := newTestParser()

			got, err := p.Decode(nil, mustHex(t, tt.in), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.data, hex.EncodeToString(got))
			assert.Equal(t, tt.replies, rec.hex())
		})
	}
}

func TestDecodeAppendsToDst(t *testing.T) {
	p, _ := newTestParser()

	got, err := p.Decode([]byte("ab"), []byte("cd"), nil)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))
}

func TestDecodeHandlerFirst(t *testing.T) {
	p, rec := newTestParser()

	var seen []Command
	h := HandlerFunc(func(c Command) (Disposition, error) {
		seen = append(seen, c)
		if c.Option == OptComPort {
			return Handled, nil
		}
		return NotApplicable, nil
	})

	got, err := p.Decode(nil, mustHex(t, "fffd2c41fffa2c6508fff0fffb0342ffff"), h)
	require.NoError(t, err)

	assert.Equal(t, "4142ff", hex.EncodeToString(got))
	require.Len(t, seen, 3)
	assert.Equal(t, Command{OpCode: DO, Option: OptComPort}, seen[0])
	assert.Equal(t, Command{OpCode: SB, Option: OptComPort, Subnegotiation: []byte{0x65, 0x08}}, seen[1])
	assert.Equal(t, Command{OpCode: WILL, Option: OptSuppressGoAhead}, seen[2])

	// DO COM-PORT-OPTION was handled, only the SGA reply went out
	assert.Equal(t, "fffd03", rec.hex())
}

func TestDecodeHandlerErrorAborts(t *testing.T) {
	p, _ := newTestParser()
	errFatal := errors.New("fatal")

	h := HandlerFunc(func(c Command) (Disposition, error) {
		return Handled, errFatal
	})

	got, err := p.Decode(nil, mustHex(t, "41fffe2c42"), h)
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, "41", hex.EncodeToString(got))
}

// Feeding a stream split at any boundary, with the incomplete tail held
// back the way the port does, must decode to the same data and commands.
func TestDecodeSplitSafety(t *testing.T) {
	stream := mustHex(t, "41fffb03fffa2c6500002580fff042ffff43fffa2c01fffffff0fff144fffd00")

	whole, wholeRec := newTestParser()
	var wholeCmds []Command
	want, err := whole.Decode(nil, stream, recordCommands(&wholeCmds))
	require.NoError(t, err)
	wantReplies := wholeRec.hex()

	for split := 0; split <= len(stream); split++ {
		p, rec := newTestParser()
		var cmds []Command
		h := recordCommands(&cmds)

		first := stream[:split]
		tail := Incomplete(first)
		got, err := p.Decode(nil, first[:len(first)-tail], h)
		require.NoError(t, err)

		rest := append(append([]byte(nil), first[len(first)-tail:]...), stream[split:]...)
		got, err = p.Decode(got, rest, h)
		require.NoError(t, err)

		assert.Equal(t, want, got, "split at %d", split)
		assert.Equal(t, wholeCmds, cmds, "split at %d", split)
		assert.Equal(t, wantReplies, rec.hex(), "split at %d", split)
	}
}

func recordCommands(dst *[]Command) Handler {
	return HandlerFunc(func(c Command) (Disposition, error) {
		*dst = append(*dst, c)
		return NotApplicable, nil
	})
}

func TestDecodeTextMode(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"CR LF", []string{"a\r\nb"}, "a\nb"},
		{"CR NUL", []string{"a\r\x00b"}, "a\rb"},
		{"stray NUL", []string{"a\x00b"}, "ab"},
		{"CR LF across chunks", []string{"a\r", "\nb"}, "a\nb"},
		{"CR NUL across chunks", []string{"a\r", "\x00b"}, "a\rb"},
		{"CR NUL LF", []string{"a\r\x00\nb"}, "a\nb"},
		{"CR NUL LF across chunks", []string{"a\r\x00", "\nb"}, "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestParser()
			p.TextMode = true

			var got []byte
			for _, chunk := range tt.in {
				var err error
				got, err = p.Decode(got, []byte(chunk), nil)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeTextModeBinaryNegotiated(t *testing.T) {
	p, _ := newTestParser()
	p.TextMode = true

	got, err := p.Decode(nil, append(mustHex(t, "fffd00"), "a\r\n\x00"...), nil)
	require.NoError(t, err)
	assert.Equal(t, "a\r\n\x00", string(got))
}

func TestDecodeBinaryModeUntouched(t *testing.T) {
	p, _ := newTestParser()

	got, err := p.Decode(nil, []byte("a\r\n\x00\r\x00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a\r\n\x00\r\x00", string(got))
}

func TestDecodeUnterminatedSubnegotiation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"never closed", "fffa2c" + hex.EncodeToString([]byte("serial data")), "2c" + hex.EncodeToString([]byte("serial data"))},
		{"broken by other command", "41fffa2c01fff142", "412c0142"},
		{"bare IAC SB at end", "41fffa", "41"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestParser()
			got, err := p.Decode(nil, mustHex(t, tt.in), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(got))
		})
	}
}
