package core

// Frame is a wire-ready chunk of bytes, one JSON object per frame.
type Frame = []byte

// ConnID identifies one live socket for the lifetime of that socket.
type ConnID string

// SignalConn is the transport handle the room talks to. TrySend must not
// block: a full or closing connection returns an error and the frame is
// dropped, never queued behind a slow peer.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
