//go:build linux

package terminal

import (
	"os"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"sibterm/pkg/shellinabox"
)

func termios(t *testing.T, fd int) *unix.Termios {
	t.Helper()
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	require.NoError(t, err)
	return tio
}

func TestRawModeOnPseudoTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	fd := int(tty.Fd())
	before := termios(t, fd)
	require.NotZero(t, before.Lflag&unix.ECHO, "a fresh pty echoes")

	r := NewRawMode(fd)
	require.NoError(t, r.Acquire())

	raw := termios(t, fd)
	assert.Zero(t, raw.Lflag&unix.ECHO)
	assert.Zero(t, raw.Lflag&unix.ICANON)

	require.NoError(t, r.Release())
	after := termios(t, fd)
	assert.Equal(t, before.Lflag, after.Lflag)
	assert.Equal(t, before.Iflag, after.Iflag)
}

func TestRawModeOnPipe(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	r := NewRawMode(int(pr.Fd()))
	assert.ErrorIs(t, r.Acquire(), ErrNotTerminal)
}

func TestTerminalSizeOnPseudoTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	require.NoError(t, pty.Setsize(ptmx, &pty.Winsize{Rows: 50, Cols: 200}))

	dims, err := TerminalSize(int(tty.Fd()))()
	require.NoError(t, err)
	assert.Equal(t, shellinabox.Dimensions{Width: 200, Height: 50}, dims)
}
