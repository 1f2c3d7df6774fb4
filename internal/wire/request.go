package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// MaxRequestBytes caps the combined size of headers and body.
const MaxRequestBytes = 4096

// ErrRequestTooLarge reports a request whose headers plus announced body
// exceed MaxRequestBytes. The dispatcher answers it with 413.
var ErrRequestTooLarge = errors.New("request too large")

// ReadRequest reads one HTTP/1.1 request from conn in two phases: header
// lines until a blank line, then exactly Content-Length body bytes. The
// split is required because headers and body routinely arrive in separate
// TCP segments; a single read cannot be relied upon.
//
// The assembled bytes are handed to net/http's parser; the returned body is
// nil when the request carried none.
func ReadRequest(conn net.Conn) (*http.Request, []byte, error) {
	br := bufio.NewReaderSize(conn, MaxRequestBytes)

	var header bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		header.WriteString(line)
		if err != nil {
			return nil, nil, fmt.Errorf("read headers: %w", err)
		}
		if header.Len() > MaxRequestBytes {
			return nil, nil, ErrRequestTooLarge
		}
		// A bare CRLF ends the header block.
		if len(line) < 3 {
			break
		}
	}

	bodySize, err := contentLength(header.String())
	if err != nil {
		return nil, nil, err
	}
	if header.Len()+bodySize > MaxRequestBytes {
		return nil, nil, ErrRequestTooLarge
	}

	var body []byte
	if bodySize > 0 {
		body = make([]byte, bodySize)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, nil, fmt.Errorf("read body (%d bytes): %w", bodySize, err)
		}
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(header.Bytes())))
	if err != nil {
		return nil, nil, fmt.Errorf("parse request: %w", err)
	}
	return req, body, nil
}

// contentLength finds the Content-Length header (case-insensitive) in the
// raw header block and parses its value: split at the first ':', trim, parse
// as an unsigned integer. Absent header means no body.
func contentLength(headers string) (int, error) {
	for _, line := range strings.Split(headers, "\n") {
		if len(line) < 15 || !strings.EqualFold(line[:14], "content-length") {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 31)
		if err != nil {
			return 0, fmt.Errorf("bad content-length %q: %w", strings.TrimSpace(value), err)
		}
		return int(n), nil
	}
	return 0, nil
}
