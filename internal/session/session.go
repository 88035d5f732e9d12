// Package session implements the PPEnc session state machine: the header
// keystream, the body-key ladder, and the response-MAC computation shared by
// both the sending and receiving halves of a connection.
package session

import (
	"log/slog"

	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/primitives/chacha20header"
	"github.com/flickpp/ppenc/internal/primitives/cubehash"
	"github.com/flickpp/ppenc/internal/primitives/sha256block"
)

// HeaderSize is the width in bytes of one PPEnc message header.
const HeaderSize = 32

// Session holds the evolving keying material for one direction of a PPEnc
// connection: the header keystream generator and the body-key ladder. A
// Sender and a Receiver each own one Session and never share it.
type Session struct {
	headerKeyRNG *chacha20header.Generator

	bodyKeyState    [32]byte
	bodyKeySalt     [16]byte
	bodyKeyNum      uint16
	bodyKey         [64]byte
	responseMACSalt [16]byte

	seqNum uint32

	logger *slog.Logger
}

func newSession(headerSalt *[16]byte, headerStateInit *[32]byte, headerRNGNonce *[12]byte, bodySalt *[16]byte, bodyState0 *[32]byte) *Session {
	var buf [64]byte
	copy(buf[:16], headerSalt[:])
	copy(buf[16:48], headerStateInit[:])

	var headerKey [32]byte
	sha256block.Hash48(&headerKey, &buf)

	s := &Session{
		headerKeyRNG: chacha20header.New(&headerKey, headerRNGNonce),
		bodyKeySalt:  *bodySalt,
		bodyKeyState: *bodyState0,
		logger:       logging.NopLogger(),
	}

	s.nextBodyKey()
	s.seqNum = 1
	return s
}

// SetLogger replaces the session's logger. A nil logger is ignored.
func (s *Session) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SeqNum returns the sequence number the session next expects to send or
// receive.
func (s *Session) SeqNum() uint32 { return s.seqNum }

// BodyKeyNum returns the index of the body key currently at the head of the
// ladder.
func (s *Session) BodyKeyNum() uint16 { return s.bodyKeyNum }

// nextBodyKey advances the body-key ladder by hashing the current state with
// the body-key salt, then expanding the hash with CubeHash into a fresh
// 64-byte body key and 16-byte response-MAC salt.
//
// Cubehash.Sum is called over only the first 31 bytes of the freshly hashed
// state: the reference implementation lets CubeHash's own 0x80 pad byte
// overwrite byte 31 of its input buffer in place, then restores it
// afterwards, rather than hashing all 32 bytes.
func (s *Session) nextBodyKey() {
	var buf [64]byte
	copy(buf[:16], s.bodyKeySalt[:])
	copy(buf[16:48], s.bodyKeyState[:])

	var newState [32]byte
	sha256block.Hash48(&newState, &buf)

	var cubeOut [128]byte
	cubehash.Sum(&cubeOut, newState[:31])

	copy(s.bodyKey[:], cubeOut[:64])
	copy(s.responseMACSalt[:], cubeOut[64:80])
	s.bodyKeyState = newState
	s.bodyKeyNum++

	s.logger.Debug("body key ratchet advanced", logging.KeyBodyKeyNum, s.bodyKeyNum)
}

// computeResponseMAC authenticates body as received (or about to be sent):
// CubeHash(body) folded through SHA-256 alongside the response-MAC salt from
// the body key used to decrypt/encrypt it. The first min(6, len(body)) bytes
// of body are XORed with innerSalt around the CubeHash call and restored
// afterwards, so a body that happens to equal a prior response MAC still
// hashes to something else.
func (s *Session) computeResponseMAC(dst *[32]byte, innerSalt []byte, body []byte) {
	n := len(body)
	if n > 6 {
		n = 6
	}
	for i := 0; i < n; i++ {
		body[i] ^= innerSalt[i]
	}

	var cubeOut [128]byte
	cubehash.Sum(&cubeOut, body)

	var buf [64]byte
	copy(buf[:16], s.responseMACSalt[:])
	copy(buf[16:48], cubeOut[:cubehash.OutputSize])
	sha256block.Hash48(dst, &buf)

	for i := 0; i < n; i++ {
		body[i] ^= innerSalt[i]
	}
}

// computeBodyChecksum folds body into an 8-byte non-cryptographic checksum:
// the first 8 bytes seed it directly, then every later byte is XORed into
// its position modulo 8. This catches transmission corruption and tampering
// with bodies that weren't also re-encrypted under the right key; it is not
// a MAC, and callers must compare it in constant time regardless.
func computeBodyChecksum(dst *[8]byte, body []byte) {
	n := len(body)
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		dst[i] = body[i]
	}
	for i := 8; i < len(body); i++ {
		dst[i%8] ^= body[i]
	}
}

// BodyPaddedLen returns the smallest multiple of 64 that is at least
// bodyLen+8, the padded body length PPEnc encrypts as whole Threefish
// blocks.
func BodyPaddedLen(bodyLen uint32) uint32 {
	padded := uint32(0)
	target := bodyLen + 8
	for padded < target {
		padded += 64
	}
	return padded
}
