package imap

import (
	"strings"
)

// Constants

// Integer counter for the possible states of a
// tagged IMAP status line.
const (
	StatusUndefined Status = iota
	StatusOK
	StatusNO
	StatusBAD
)

// Structs

// Status represents the integer value associated
// with the classified first token of a tagged
// status line.
type Status int

// Response represents the parsed content of one raw
// answer received from an IMAP server. Lines holds
// all untagged lines in the order they were received
// with their leading line markers stripped, while
// StatusLine carries the text trailing the status
// word of the tagged line.
type Response struct {
	Status     Status
	StatusLine string
	Lines      []string
	Err        Error
}

// Functions

// OK reports whether the server answered the
// correlated command with a tagged OK.
func (r Response) OK() bool {
	return r.Status == StatusOK
}

// ParseResponse takes in the raw bytes received in answer
// to one command and parses them into the defined response
// structure above. If expectedTag is non-empty, the line
// starting with that tag is taken as the status line. If no
// tag is expected or none was found and exactly one non-empty
// line remains, that single line is classified instead. An
// answer without any locatable status line is conservatively
// treated as undefined rather than guessing which of
// multiple lines is authoritative.
func ParseResponse(raw []byte, expectedTag string) Response {

	resp := Response{
		Status: StatusUndefined,
	}

	if len(raw) == 0 {
		resp.Err = newError(UndefinedResponse, "empty response from server")
		return resp
	}

	// Split raw answer into trimmed non-empty lines and
	// strip the two character marker from untagged and
	// continuation lines.
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {

		line = strings.Trim(line, " \t\r")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
			line = line[2:]
		}

		lines = append(lines, line)
	}

	if len(lines) == 0 {
		resp.Err = newError(UndefinedResponse, "response from server contained no parseable lines")
		return resp
	}

	// Locate the status line among the received lines.
	statusLine := ""
	tagged := false
	for _, line := range lines {

		if !tagged && expectedTag != "" && strings.HasPrefix(line, expectedTag+" ") {
			statusLine = strings.TrimSpace(strings.TrimPrefix(line, expectedTag))
			tagged = true
			continue
		}

		resp.Lines = append(resp.Lines, line)
	}

	if !tagged {

		if len(resp.Lines) != 1 {
			resp.Err = newError(UndefinedResponse, "response from server did not carry the expected tag")
			return resp
		}

		// A single remaining line is authoritative, e.g.
		// the initial server greeting.
		statusLine = resp.Lines[0]
		resp.Lines = nil
	}

	// Classify the first token of the status line.
	status, rest := splitStatusLine(statusLine)
	resp.StatusLine = rest

	switch status {
	case "OK":
		resp.Status = StatusOK
	case "NO":
		resp.Status = StatusNO
		resp.Err = newError(NoResponse, rest)
	case "BAD":
		resp.Status = StatusBAD
		resp.Err = newError(BadResponse, rest)
	default:
		resp.Err = newError(UndefinedResponse, statusLine)
	}

	return resp
}

// splitStatusLine cuts a status line into its upper-cased
// first token and the remaining trailing text.
func splitStatusLine(line string) (string, string) {

	parts := strings.SplitN(line, " ", 2)
	if len(parts) < 2 {
		return strings.ToUpper(strings.TrimSpace(line)), ""
	}

	return strings.ToUpper(parts[0]), strings.TrimSpace(parts[1])
}
