package session

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/flickpp/ppenc/internal/byteorder"
	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/primitives/headerscramble"
	"github.com/flickpp/ppenc/internal/primitives/threefish"
)

// Errors returned by Receiver. Each is fatal to the session: the reference
// implementation never recovers from a rejected header or body, and neither
// does this port (see the "Open Question decisions" entry in DESIGN.md).
var (
	ErrBadVersion      = errors.New("ppenc: unsupported header version")
	ErrBadSeqNum       = errors.New("ppenc: sequence number does not match session")
	ErrBadBodyKeyNum   = errors.New("ppenc: body key number moved backwards")
	ErrBadBodyChecksum = errors.New("ppenc: body checksum mismatch")
)

// Header is the parsed, decrypted form of one message header.
type Header struct {
	SeqNum       uint32
	BodyLen      uint32
	BodyKeyNum   uint16
	InnerSalt    [6]byte
	TweakSeed    [8]byte
	BodyChecksum [8]byte
}

// Receiver holds one direction's session state for decrypting inbound
// messages.
type Receiver struct {
	session *Session
}

// NewReceiver builds a Receiver from the same bootstrap material the peer's
// Sender was built from.
func NewReceiver(headerSalt *[16]byte, headerStateInit *[32]byte, headerRNGNonce *[12]byte, bodySalt *[16]byte, bodyState0 *[32]byte) *Receiver {
	return &Receiver{session: newSession(headerSalt, headerStateInit, headerRNGNonce, bodySalt, bodyState0)}
}

// SetLogger replaces the receiver's logger. A nil logger is ignored.
func (r *Receiver) SetLogger(logger *slog.Logger) { r.session.SetLogger(logger) }

// SeqNum returns the sequence number the next inbound header must carry.
func (r *Receiver) SeqNum() uint32 { return r.session.seqNum }

// BodyKeyNum returns the index of the body key currently at the head of the
// ladder.
func (r *Receiver) BodyKeyNum() uint16 { return r.session.bodyKeyNum }

// ReadHeader decrypts and unscrambles raw in place and parses it. raw is
// consumed: after this call it holds the plaintext header fields laid out
// as on the wire, not usable for a second ReadHeader call.
//
// A returned error is fatal to the session: seq_num is not advanced, and
// the caller should tear the connection down rather than attempt to skip
// the message and keep reading.
func (r *Receiver) ReadHeader(raw *[HeaderSize]byte) (Header, error) {
	r.session.headerKeyRNG.XorHeader(raw)
	headerscramble.Unscramble(raw)

	var h Header
	if raw[0] != 0 {
		r.session.logger.Warn("rejected header", logging.KeyError, ErrBadVersion)
		return h, ErrBadVersion
	}

	h.SeqNum = byteorder.ReadUint24(raw[1:4])
	if h.SeqNum != r.session.seqNum {
		r.session.logger.Warn("rejected header", logging.KeyError, ErrBadSeqNum, logging.KeySeqNum, h.SeqNum)
		return h, ErrBadSeqNum
	}

	h.BodyLen = byteorder.ReadUint32(raw[4:8])
	h.BodyKeyNum = byteorder.ReadUint16(raw[8:10])
	copy(h.InnerSalt[:], raw[10:16])
	copy(h.TweakSeed[:], raw[16:24])
	copy(h.BodyChecksum[:], raw[24:32])

	return h, nil
}

// ReadBody decrypts body in place given a header already parsed by
// ReadHeader, advancing the body-key ladder if the header names a later
// key than the session currently holds. body must have length
// BodyPaddedLen(h.BodyLen). On success it returns the response MAC the
// sender expects echoed back, and the session's sequence number advances
// by one.
func (r *Receiver) ReadBody(h *Header, body []byte) ([32]byte, error) {
	var responseMAC [32]byte
	bodyLenPadded := BodyPaddedLen(h.BodyLen)

	if h.BodyKeyNum < r.session.bodyKeyNum {
		r.session.logger.Warn("rejected body", logging.KeyError, ErrBadBodyKeyNum, logging.KeyBodyKeyNum, h.BodyKeyNum)
		return responseMAC, ErrBadBodyKeyNum
	}
	for r.session.bodyKeyNum < h.BodyKeyNum {
		r.session.nextBodyKey()
	}

	cipher := threefish.New(&r.session.bodyKey, &h.TweakSeed)
	for off := uint32(0); off < bodyLenPadded; off += threefish.BlockSize {
		var block [64]byte
		copy(block[:], body[off:off+threefish.BlockSize])
		cipher.DecryptBlock(&block)
		copy(body[off:off+threefish.BlockSize], block[:])
		cipher.AdvanceTweaks(off/threefish.BlockSize + 1)
	}

	var checksum [8]byte
	computeBodyChecksum(&checksum, body[:bodyLenPadded])
	if subtle.ConstantTimeCompare(checksum[:], h.BodyChecksum[:]) != 1 {
		r.session.logger.Warn("rejected body", logging.KeyError, ErrBadBodyChecksum)
		return responseMAC, ErrBadBodyChecksum
	}

	r.session.computeResponseMAC(&responseMAC, h.InnerSalt[:], body[:h.BodyLen])

	r.session.seqNum++
	return responseMAC, nil
}
