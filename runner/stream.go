package runner

import (
	"bufio"
	"bytes"
	"io"
)

// LineReader splits tool output into lines. Interactive tools print
// prompts without a trailing newline and then block on input, so a line
// also ends right after any of the configured prompt tokens. Blanks and
// one newline directly following a prompt belong to the prompt line, so
// a prompt yields the same lines whether or not the tool terminates it
// and however its output is chunked.
type LineReader struct {
	r       *bufio.Reader
	prompts [][]byte
	line    []byte
	// afterPrompt is set when the previous line ended at a prompt.
	afterPrompt bool
	err         error
}

// NewLineReader creates a LineReader over r.
func NewLineReader(r io.Reader, prompts ...string) *LineReader {
	lr := &LineReader{r: bufio.NewReader(r)}
	for _, p := range prompts {
		if p != "" {
			lr.prompts = append(lr.prompts, []byte(p))
		}
	}
	return lr
}

// ReadLine returns the next line without its terminator. A partial last
// line is returned before io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	if lr.err != nil {
		return "", lr.err
	}
	lr.line = lr.line[:0]

	for {
		b, err := lr.r.ReadByte()
		if err != nil {
			lr.err = err
			lr.afterPrompt = false
			if len(lr.line) > 0 {
				return lr.emit(), nil
			}
			return "", err
		}

		if lr.afterPrompt {
			if isBlank(b) {
				continue
			}
			lr.afterPrompt = false
			if b == '\n' {
				continue
			}
		}

		if b == '\n' {
			return lr.emit(), nil
		}
		lr.line = append(lr.line, b)

		if lr.endsWithPrompt() {
			lr.absorbPromptTail()
			return lr.emit(), nil
		}
	}
}

// Discard reads and drops everything up to the end of the stream.
func (lr *LineReader) Discard() error {
	if lr.err != nil {
		return nil
	}
	_, err := io.Copy(io.Discard, lr.r)
	lr.err = io.EOF
	return err
}

func (lr *LineReader) endsWithPrompt() bool {
	for _, p := range lr.prompts {
		if bytes.HasSuffix(lr.line, p) {
			return true
		}
	}
	return false
}

// absorbPromptTail marks the prompt tail for skipping on the next read,
// so returning the prompt line never waits for more output.
func (lr *LineReader) absorbPromptTail() {
	lr.afterPrompt = true
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r'
}

func (lr *LineReader) emit() string {
	return string(bytes.TrimRight(lr.line, "\r"))
}
