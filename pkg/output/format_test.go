package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionResult struct {
	Session string `json:"session"`
}

func (s sessionResult) Text() string {
	return "session " + s.Session
}

func TestFormatter_OutputJSON(t *testing.T) {
	var buf bytes.Buffer
	formatter := New(FormatJSON)
	formatter.SetWriter(&buf)

	require.NoError(t, formatter.Output(sessionResult{Session: "abc123"}))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "abc123", decoded["session"])
}

func TestFormatter_OutputText(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
		want string
	}{
		{name: "texter", data: sessionResult{Session: "abc123"}, want: "session abc123\n"},
		{name: "plain", data: 42, want: "42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatter := New(FormatText)
			formatter.SetWriter(&buf)

			require.NoError(t, formatter.Output(tt.data))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatter_UnsupportedFormat(t *testing.T) {
	formatter := New(Format("xml"))
	formatter.SetWriter(&bytes.Buffer{})
	assert.Error(t, formatter.Output("x"))
}

func TestFromCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Format
		wantErr bool
	}{
		{name: "default", args: nil, want: FormatText},
		{name: "json", args: []string{"-o", "json"}, want: FormatJSON},
		{name: "long flag", args: []string{"--output", "text"}, want: FormatText},
		{name: "invalid", args: []string{"-o", "yaml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			AddFormatFlag(cmd)
			require.NoError(t, cmd.ParseFlags(tt.args))

			var buf bytes.Buffer
			cmd.SetOut(&buf)

			formatter, err := FromCmd(cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, formatter.format)

			require.NoError(t, formatter.Output(sessionResult{Session: "s"}))
			assert.NotEmpty(t, buf.String(), "formatter should write to the command output")
		})
	}
}
