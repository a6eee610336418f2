// Package wire implements the line/brace text protocol spoken by serial
// microcontrollers and remote HTTP agents.
//
// A request is one line, the verb followed by comma-separated arguments:
//
//	SETSWITCH,1,1\n
//
// A reply is a single token in braces:
//
//	{1}
//
// Agents receive the same verbs as URL path segments (see PathRequest).
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Protocol verbs.
const (
	VerbName         = "NAME"
	VerbHeartbeat    = "MARCO"
	VerbGetSwitch    = "GETSWITCH"
	VerbSetSwitch    = "SETSWITCH"
	VerbToggleSwitch = "TOGGLESWITCH"
	VerbGetDimmer    = "GETDIMMER"
	VerbSetDimmer    = "SETDIMMER"
	VerbGetSensor    = "GETSENSOR"
	VerbGetHeater    = "GETHEATER"
	VerbSetHeater    = "SETHEATER"
	VerbOverview     = "OVERVIEW"

	// HeartbeatReply is the only acceptable answer to VerbHeartbeat.
	HeartbeatReply = "POLO"
)

// MaxTokenLength bounds a reply so a noisy line cannot grow without limit.
// Overviews are the longest replies.
const MaxTokenLength = 8192

// ErrTimeout is returned by ReadToken when the reader yields no data.
var ErrTimeout = errors.New("wire: read timed out")

// FormatRequest builds a request line.
//
//	FormatRequest("SETSWITCH", "1", "1") // "SETSWITCH,1,1\n"
func FormatRequest(verb string, args ...string) string {
	var b strings.Builder
	b.WriteString(verb)
	for _, a := range args {
		b.WriteByte(',')
		b.WriteString(a)
	}
	b.WriteByte('\n')
	return b.String()
}

// PathRequest builds the URL suffix for an agent request.
//
//	PathRequest("SETSWITCH", "1", "1") // "SETSWITCH/1/1"
func PathRequest(verb string, args ...string) string {
	if len(args) == 0 {
		return verb
	}
	return verb + "/" + strings.Join(args, "/")
}

// ReadToken reads one brace-delimited reply from r and returns the text
// between the braces. Bytes before the opening brace are discarded.
//
// Serial ports report a read timeout as a zero-length read with a nil
// error; ReadToken treats that as ErrTimeout. Every failure wraps
// device.ErrTransport.
func ReadToken(r io.Reader) (string, error) {
	var (
		buf    bytes.Buffer
		one    [1]byte
		inside bool
	)
	for {
		n, err := r.Read(one[:])
		if n == 1 {
			c := one[0]
			switch {
			case !inside && c == '{':
				inside = true
			case inside && c == '}':
				return buf.String(), nil
			case inside:
				if buf.Len() >= MaxTokenLength {
					return "", fmt.Errorf("%w: reply exceeds %d bytes", device.ErrTransport, MaxTokenLength)
				}
				buf.WriteByte(c)
			}
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", device.ErrTransport, err)
		}
		return "", fmt.Errorf("%w: %w", device.ErrTransport, ErrTimeout)
	}
}

// ParseToken extracts the token from a complete reply such as "{21.5}\n".
func ParseToken(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("%w: %q is not a brace token", device.ErrBadReply, reply)
	}
	return s[1 : len(s)-1], nil
}

// ParseInt parses an integer token.
func ParseInt(token string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q", device.ErrBadReply, token)
	}
	return v, nil
}

// ParseFloat parses a decimal token.
func ParseFloat(token string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", device.ErrBadReply, token)
	}
	return v, nil
}

// FormatFloat renders a temperature argument.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBool renders a flag argument as 1 or 0.
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
