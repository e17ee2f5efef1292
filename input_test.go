package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	go func() {
		io.WriteString(w, "first line\r\nsecond\nlast without newline")
		w.Close()
	}()

	var out strings.Builder
	lr := NewLineReader(r, &out)
	assert.False(t, lr.IsTerminal())

	for _, want := range []string{"first line", "second", "last without newline"} {
		line, err := lr.ReadLine("> ")
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err = lr.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > > ", out.String())
}
