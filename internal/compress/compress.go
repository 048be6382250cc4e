// Package compress implements the optional per-connection downstream
// compression pipeline described in spec.md §4.B: two versioned
// variants (distinguished only by telnet option number; both use the
// same zlib/deflate wire codec, matching real-world MCCP), started on
// negotiation, switchable mid-session, and finalized at session close.
//
// compress/zlib is used rather than a third-party codec because MCCP's
// wire format literally is RFC 1950 zlib — this mirrors
// nabbar-golib/archive/compress, which reaches for the stdlib codec
// directly (compress/gzip) whenever the wire format a component must
// produce is exactly what the standard library already implements, and
// reserves third-party codecs (github.com/dsnet/compress) for formats
// the standard library cannot write (bzip2).
package compress

import (
	"compress/zlib"
	"fmt"
	"io"

	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// Stream is the compressor's owned state for one session, exclusively
// owned by the session while enabled (spec §3 Ownership).
type Stream struct {
	Version    session.Compressor
	underlying io.Writer
	zw         *zlib.Writer
}

// StartMarker returns the uncompressed bytes that announce the stream
// boundary for the given version, emitted before the compressor takes
// over the connection (spec §4.B/§4.C):
//
//	v1: IAC SB <opt> WILL SE
//	v2: IAC SB <opt> IAC SE
func StartMarker(version session.Compressor) []byte {
	switch version {
	case session.CompressV1:
		return []byte{telnet.IAC, telnet.SB, telnet.OptCompressV1, telnet.WILL, telnet.SE}
	case session.CompressV2:
		return []byte{telnet.IAC, telnet.SB, telnet.OptCompressV2, telnet.IAC, telnet.SE}
	default:
		return nil
	}
}

// Start begins compression for s: it writes the version's uncompressed
// start marker directly to conn, then wraps conn in a zlib writer. Per
// spec §4.B, attempting to start a different version while one is
// already active is a no-op; per §9's Open Question resolution,
// agreeing on a version unconditionally supersedes whichever was active
// (callers should Stop the old stream first if switching).
func Start(s *session.Session, conn io.Writer, version session.Compressor) error {
	if s.Protocol.Compressor != session.CompressNone {
		return nil // no-op: one compressor may be active at a time
	}
	marker := StartMarker(version)
	if marker == nil {
		return fmt.Errorf("compress: unknown version %v", version)
	}
	if _, err := conn.Write(marker); err != nil {
		return fmt.Errorf("compress: writing start marker: %w", err)
	}
	st := &Stream{Version: version, underlying: conn, zw: zlib.NewWriter(conn)}
	s.CompressorStream = st
	s.Protocol.Compressor = version
	return nil
}

// Write compresses b into the stream. The compressor tolerates tiny
// writes by buffering internally; callers must call Flush at least once
// per pulse to push pending output to the wire (spec §4.B).
func (st *Stream) Write(b []byte) (int, error) {
	return st.zw.Write(b)
}

// Flush pushes any internally buffered compressed output to the
// underlying writer without ending the zlib stream.
func (st *Stream) Flush() error {
	return st.zw.Flush()
}

// Stop flushes pending output, writes the zlib trailer, and releases the
// stream context, reverting the session to plaintext output.
func Stop(s *session.Session) error {
	st, ok := s.CompressorStream.(*Stream)
	if !ok || st == nil {
		return nil
	}
	err := st.zw.Close()
	s.CompressorStream = nil
	s.Protocol.Compressor = session.CompressNone
	return err
}

// FinalizeOnClose finalizes any active compressor for s, swallowing
// errors: spec §3 requires the compressor be finalized and disposed at
// session close "regardless of which code path closed it."
func FinalizeOnClose(s *session.Session) {
	if st, ok := s.CompressorStream.(*Stream); ok && st != nil {
		_ = st.zw.Close()
		s.CompressorStream = nil
		s.Protocol.Compressor = session.CompressNone
	}
}

// CurrentWriter returns the io.Writer game output should be written
// through for s: the active compressor stream if one is installed,
// otherwise conn directly (spec §4.A "fall-through to optional
// compressor on the send side").
func CurrentWriter(s *session.Session, conn io.Writer) io.Writer {
	if st, ok := s.CompressorStream.(*Stream); ok && st != nil {
		return st
	}
	return conn
}

// FlushIfActive calls Flush on s's compressor if one is active; used by
// the game loop once per pulse after the write phase.
func FlushIfActive(s *session.Session) error {
	if st, ok := s.CompressorStream.(*Stream); ok && st != nil {
		return st.Flush()
	}
	return nil
}

// RecoverCorruption stops compression, letting the session continue in
// plaintext, for the "compression stream corruption" close path (spec
// §7 error kind 9) where the game layer chooses to degrade rather than
// disconnect.
func RecoverCorruption(s *session.Session) {
	_ = Stop(s)
}
