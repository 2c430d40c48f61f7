package session

import (
	"encoding/json"
	"strings"

	"github.com/foxseedlab/livescribe/internal/recognizer"
)

const (
	statusDone   = "done"
	statusClosed = "closed"

	errorTranscoderFailed = "ffmpeg failed"
	errorRecognizerFailed = "whisper failed"
	errorTooManySessions  = "too many sessions"
)

type command int

const (
	commandUnknown command = iota
	commandReset
	commandEnd
	commandClose
)

func (c command) String() string {
	switch c {
	case commandReset:
		return "reset"
	case commandEnd:
		return "end"
	case commandClose:
		return "close"
	default:
		return "unknown"
	}
}

func parseCommand(data []byte) command {
	switch strings.ToLower(strings.TrimSpace(string(data))) {
	case "reset":
		return commandReset
	case "end":
		return commandEnd
	case "close":
		return commandClose
	default:
		return commandUnknown
	}
}

// Outbound wire messages. Exactly one field is set per message.
type partialMessage struct {
	Partial string `json:"partial"`
}

type textMessage struct {
	Text string `json:"text"`
}

type statusMessage struct {
	Status string `json:"status"`
}

type errorMessage struct {
	Error string `json:"error"`
}

func encodeResult(res recognizer.Result) []byte {
	if res.Final {
		return mustEncode(textMessage{Text: res.Text})
	}
	return mustEncode(partialMessage{Partial: res.Text})
}

func encodeStatus(status string) []byte {
	return mustEncode(statusMessage{Status: status})
}

func encodeError(reason string) []byte {
	return mustEncode(errorMessage{Error: reason})
}

// The message types hold only strings, so marshalling cannot fail.
func mustEncode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
