package telnet

import (
	"bytes"
	"errors"
	"io"

	"github.com/dystopia-mud/mudcore/internal/session"
)

// IsGracefulClose reports whether err represents the peer closing the
// stream normally (spec §7 error kind 1, logged at info) as opposed to
// a genuine I/O error (kind 2, logged with the masked host). The
// per-session read goroutine (internal/loop) reads via a blocking
// net.Conn.Read on its own goroutine rather than a non-blocking poll
// loop; this is the one place that distinction still has to be made.
func IsGracefulClose(err error) bool {
	return errors.Is(err, io.EOF)
}

// byteWriter is satisfied by both net.Conn and an active compressor
// stream (internal/compress), letting WriteRaw fall through to
// compression transparently (spec §4.A "fall-through to optional
// compressor on the send side").
type byteWriter interface {
	io.Writer
}

// Writer adapts ByteIO's chunked, retrying write semantics over
// whichever byteWriter the session currently has installed (plain
// socket, or a compressor sitting in front of it).
type Writer struct {
	dest byteWriter
}

// NewWriter wraps dest (a net.Conn, or a compressor stream) with
// chunked, retrying writes.
func NewWriter(dest byteWriter) *Writer {
	return &Writer{dest: dest}
}

// WriteAllChunked writes b to dest in chunks of at most WriteChunkMax
// bytes, retrying short writes within the same call, per spec §4.A.
func (w *Writer) WriteAllChunked(b []byte) error {
	for len(b) > 0 {
		n := len(b)
		if n > session.WriteChunkMax {
			n = session.WriteChunkMax
		}
		chunk := b[:n]
		for len(chunk) > 0 {
			written, err := w.dest.Write(chunk)
			if err != nil {
				return err
			}
			chunk = chunk[written:]
		}
		b = b[n:]
	}
	return nil
}

// EscapeIAC doubles any literal 0xFF byte in b so it is not
// misinterpreted as an IAC command by the peer (spec §4.A/§4.C send
// path). Subnegotiation frames produced by EncodeSubneg already escape
// their own payload and must not be passed through this a second time.
func EscapeIAC(b []byte) []byte {
	if !bytes.Contains(b, []byte{IAC}) {
		return b
	}
	out := make([]byte, 0, len(b)+8)
	for _, c := range b {
		if c == IAC {
			out = append(out, IAC, IAC)
		} else {
			out = append(out, c)
		}
	}
	return out
}
