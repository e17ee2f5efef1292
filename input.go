package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// errInterrupted is returned when Ctrl+C is pressed at the prompt.
var errInterrupted = errors.New("interrupted")

// LineReader reads one line of input, using raw mode on a terminal so
// Ctrl+C and Ctrl+D behave at the prompt. Other inputs are read as plain
// newline-terminated lines.
type LineReader struct {
	in  *os.File
	out io.Writer
	br  *bufio.Reader
}

func NewLineReader(in *os.File, out io.Writer) *LineReader {
	return &LineReader{in: in, out: out, br: bufio.NewReader(in)}
}

func (lr *LineReader) IsTerminal() bool { return term.IsTerminal(int(lr.in.Fd())) }

// ReadLine prints prompt and returns the entered line. io.EOF means the
// user is done.
func (lr *LineReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(lr.out, prompt)

	fd := int(lr.in.Fd())
	if !term.IsTerminal(fd) {
		return lr.readLineSimple()
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return lr.readLineSimple()
	}
	defer term.Restore(fd, oldState)

	var buf []byte
	inEscape := false
	b := make([]byte, 1)

	for {
		n, err := lr.in.Read(b)
		if err != nil || n == 0 {
			return "", io.EOF
		}
		ch := b[0]

		// Arrow keys and friends: ESC [ ... final byte. Discarded.
		if inEscape {
			if ch >= 0x40 && ch <= 0x7e && ch != '[' {
				inEscape = false
			}
			continue
		}

		switch ch {
		case 0x1b:
			inEscape = true

		case '\r', '\n':
			fmt.Fprint(lr.out, "\r\n")
			return string(buf), nil

		case 0x03: // Ctrl+C
			fmt.Fprint(lr.out, "^C\r\n")
			return "", errInterrupted

		case 0x04: // Ctrl+D
			if len(buf) == 0 {
				fmt.Fprint(lr.out, "\r\n")
				return "", io.EOF
			}

		case 0x7f, 0x08: // Backspace
			if len(buf) > 0 {
				_, size := utf8.DecodeLastRune(buf)
				buf = buf[:len(buf)-size]
				fmt.Fprint(lr.out, "\b \b")
			}

		case '\t':
			// ignore tabs in input

		default:
			if ch >= 0x20 {
				buf = append(buf, ch)
				lr.out.Write([]byte{ch})
			}
		}
	}
}

func (lr *LineReader) readLineSimple() (string, error) {
	line, err := lr.br.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", io.EOF
	}
	return strings.TrimRight(line, "\r\n"), nil
}
