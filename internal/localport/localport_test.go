package localport

import (
	"io"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

func TestSerialMode(t *testing.T) {
	tests := []struct {
		in   comport.Parameters
		want serial.Mode
	}{
		{comport.Parameters{}, serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}},
		{comport.Parameters{Baud: 9600, DataBits: 7}, serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.OneStopBit}},
		{comport.Parameters{Baud: 2400, Parity: comport.ParityOdd, StopBits: 2}, serial.Mode{BaudRate: 2400, DataBits: 8, Parity: serial.OddParity, StopBits: serial.TwoStopBits}},
		{comport.Parameters{Parity: comport.ParityMark}, serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.MarkParity, StopBits: serial.OneStopBit}},
		{comport.Parameters{Parity: comport.ParitySpace}, serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.SpaceParity, StopBits: serial.OneStopBit}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, *SerialMode(tt.in), tt.in.String())
	}
}

func TestOpenSerialMissingDevice(t *testing.T) {
	_, err := Open("/dev/does-not-exist-rfc2217", comport.Parameters{})
	assert.Error(t, err)
}

func TestPtyRaw(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("pty raw mode is configured on linux only")
	}

	ep, err := Open("", comport.Parameters{})
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	require.NoError(t, ep.SetParameters(comport.Parameters{Baud: 9600}))

	client, err := os.OpenFile(ep.Name(), os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	// No CR/LF translation or echo in either direction
	payload := []byte("a\nb\r\x00\xff")
	_, err = client.Write(payload)
	require.NoError(t, err)

	got := make([]byte, len(payload))
	_, err = io.ReadFull(ep, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = ep.Write([]byte("x\ny"))
	require.NoError(t, err)

	back := make([]byte, 3)
	_, err = io.ReadFull(client, back)
	require.NoError(t, err)
	assert.Equal(t, "x\ny", string(back))
}
