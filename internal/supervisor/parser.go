package supervisor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Parser decodes a newline-delimited JSON byte stream into StreamEvents.
// Events are produced lazily, one per non-empty line, in input order. A
// malformed line is a hard error: the sequence stops there. A trailing
// line without a terminating newline is decoded like any other.
type Parser struct {
	scanner *bufio.Scanner
	lineNum int
	failed  bool
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large outputs
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	return &Parser{scanner: scanner}
}

// Next returns the next event in the stream. It returns (nil, nil) on
// clean end of stream. After an error, all subsequent calls return the
// same terminal condition.
func (p *Parser) Next() (*StreamEvent, error) {
	if p.failed {
		return nil, fmt.Errorf("stream parser already failed")
	}

	for p.scanner.Scan() {
		line := p.scanner.Bytes()
		p.lineNum++

		if len(line) == 0 {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			p.failed = true
			return nil, fmt.Errorf("malformed event on line %d: %w", p.lineNum, err)
		}

		event.Raw = make([]byte, len(line))
		copy(event.Raw, line)
		event.Timestamp = time.Now()

		return &event, nil
	}

	if err := p.scanner.Err(); err != nil {
		p.failed = true
		return nil, fmt.Errorf("stdout scanner error: %w", err)
	}

	return nil, nil
}
