package comport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	tests := []struct {
		in   Parameters
		want Parameters
	}{
		{Parameters{}, Parameters{Baud: 115200, DataBits: 8, Parity: ParityNone, StopBits: 1}},
		{Parameters{DataBits: 7}, Parameters{Baud: 115200, DataBits: 7, Parity: ParityEven, StopBits: 1}},
		{Parameters{Baud: 9600, Parity: ParityOdd, StopBits: 2}, Parameters{Baud: 9600, DataBits: 8, Parity: ParityOdd, StopBits: 2}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.WithDefaults())
	}
}

func TestMergeKeepsCurrentValues(t *testing.T) {
	cur := Parameters{Baud: 9600, DataBits: 8, Parity: ParityNone, StopBits: 1}

	got := Parameters{DataBits: 7, Parity: ParityEven}.Merge(cur)
	assert.Equal(t, Parameters{Baud: 9600, DataBits: 7, Parity: ParityEven, StopBits: 1}, got)
}

func TestValidate(t *testing.T) {
	valid := Parameters{Baud: 2400, DataBits: 5, Parity: ParitySpace, StopBits: 2}
	require.NoError(t, valid.Validate())

	invalid := []Parameters{
		{Baud: 0, DataBits: 8, Parity: ParityNone, StopBits: 1},
		{Baud: 9600, DataBits: 4, Parity: ParityNone, StopBits: 1},
		{Baud: 9600, DataBits: 9, Parity: ParityNone, StopBits: 1},
		{Baud: 9600, DataBits: 8, Parity: 6, StopBits: 1},
		{Baud: 9600, DataBits: 8, Parity: 0, StopBits: 1},
		{Baud: 9600, DataBits: 8, Parity: ParityNone, StopBits: 3},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, p.Validate(), ErrInvalidParameters, "%+v", p)
	}
}

func TestParametersString(t *testing.T) {
	assert.Equal(t, "115200 8N1", Parameters{}.WithDefaults().String())
	assert.Equal(t, "9600 7E2", Parameters{Baud: 9600, DataBits: 7, Parity: ParityEven, StopBits: 2}.String())
}

func TestParseParity(t *testing.T) {
	tests := map[string]Parity{
		"":      0,
		"none":  ParityNone,
		"N":     ParityNone,
		"Odd":   ParityOdd,
		"e":     ParityEven,
		"MARK":  ParityMark,
		"space": ParitySpace,
	}
	for in, want := range tests {
		got, err := ParseParity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseParity("x")
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestParametersJSON(t *testing.T) {
	data, err := json.Marshal(Parameters{Baud: 9600, DataBits: 7, Parity: ParityEven, StopBits: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"baud":9600,"data_bits":7,"parity":"even","stop_bits":1}`, string(data))

	var p Parameters
	require.NoError(t, json.Unmarshal([]byte(`{"parity":"odd"}`), &p))
	assert.Equal(t, Parameters{Parity: ParityOdd}, p)

	assert.Error(t, json.Unmarshal([]byte(`{"parity":"weird"}`), &p))
}
