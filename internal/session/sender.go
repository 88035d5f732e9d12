package session

import (
	"log/slog"

	"github.com/flickpp/ppenc/internal/byteorder"
	"github.com/flickpp/ppenc/internal/primitives/chacha8"
	"github.com/flickpp/ppenc/internal/primitives/headerscramble"
	"github.com/flickpp/ppenc/internal/primitives/threefish"
)

// Sender holds one direction's session state plus the ChaCha8 generator it
// draws inner salts, body padding, and tweak seeds from.
type Sender struct {
	session *Session
	rng     *chacha8.Generator
}

// NewSender builds a Sender from a keyed ChaCha8 generator and the same
// bootstrap material the peer's Receiver was built from.
func NewSender(rng *chacha8.Generator, headerSalt *[16]byte, headerStateInit *[32]byte, headerRNGNonce *[12]byte, bodySalt *[16]byte, bodyState0 *[32]byte) *Sender {
	return &Sender{
		session: newSession(headerSalt, headerStateInit, headerRNGNonce, bodySalt, bodyState0),
		rng:     rng,
	}
}

// SetLogger replaces the sender's logger. A nil logger is ignored.
func (s *Sender) SetLogger(logger *slog.Logger) { s.session.SetLogger(logger) }

// SeqNum returns the sequence number the next message will carry.
func (s *Sender) SeqNum() uint32 { return s.session.seqNum }

// BodyKeyNum returns the index of the body key the next message will use.
func (s *Sender) BodyKeyNum() uint16 { return s.session.bodyKeyNum }

// NewBodyKey advances the body-key ladder out of band, ahead of the next
// message that will use it. The receiver only catches up to a body key
// number when it appears in a header, so this only makes sense to call
// between messages, not mid-message.
func (s *Sender) NewBodyKey() {
	s.session.nextBodyKey()
}

// NewMessage encrypts one message. body must have length BodyPaddedLen(bodyLen)
// with body[:bodyLen] already holding the plaintext; NewMessage fills
// body[bodyLen:] with padding and encrypts the whole buffer in place. header
// receives the encrypted, scrambled 32-byte header. It returns the response
// MAC the receiver is expected to echo back on successful delivery.
func (s *Sender) NewMessage(header *[HeaderSize]byte, body []byte, bodyLen uint32) (bodyLenPadded uint32, responseMAC [32]byte) {
	bodyLenPadded = BodyPaddedLen(bodyLen)

	header[0] = 0
	byteorder.WriteUint24(header[1:4], s.session.seqNum)
	byteorder.WriteUint32(header[4:8], bodyLen)
	byteorder.WriteUint16(header[8:10], s.session.bodyKeyNum)

	innerSalt := header[10:16]
	tweakSeedField := header[16:24]
	bodyChecksumField := header[24:32]

	s.rng.NextBytes(innerSalt)

	s.session.computeResponseMAC(&responseMAC, innerSalt, body[:bodyLen])

	s.rng.NextBytes(body[bodyLen:bodyLenPadded])

	var tweakSeed [8]byte
	s.rng.NextBytes(tweakSeed[:])
	copy(tweakSeedField, tweakSeed[:])

	var checksum [8]byte
	computeBodyChecksum(&checksum, body[:bodyLenPadded])
	copy(bodyChecksumField, checksum[:])

	cipher := threefish.New(&s.session.bodyKey, &tweakSeed)
	for off := uint32(0); off < bodyLenPadded; off += threefish.BlockSize {
		var block [64]byte
		copy(block[:], body[off:off+threefish.BlockSize])
		cipher.EncryptBlock(&block)
		copy(body[off:off+threefish.BlockSize], block[:])
		cipher.AdvanceTweaks(off/threefish.BlockSize + 1)
	}

	headerscramble.Scramble(header)
	s.session.headerKeyRNG.XorHeader(header)

	s.session.seqNum++

	return bodyLenPadded, responseMAC
}
