package channel

import "errors"

// ErrClosed is returned by Receive once the peer has gone away.
var ErrClosed = errors.New("channel closed")

type MessageType int

const (
	Binary MessageType = iota
	Text
)

type Message struct {
	Type MessageType
	Data []byte
}

// Conn is one accepted duplex connection. Receive is called from a single
// reader goroutine; WriteText and Ping from a single writer goroutine. Close
// may be called from any goroutine and unblocks Receive.
type Conn interface {
	Receive() (Message, error)
	WriteText(data []byte) error
	Ping() error
	Close() error
	RemoteAddr() string
}
