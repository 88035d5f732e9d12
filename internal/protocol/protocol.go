// Package protocol frames PPEnc messages onto a byte stream: a Writer
// encrypts and writes header-then-body pairs, a Reader reads and decrypts
// them, and both sides exchange the 32-byte response MAC that authenticates
// receipt of each message.
package protocol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/session"
)

const (
	// HeaderSize is the width of one message header on the wire.
	HeaderSize = session.HeaderSize

	// ResponseMACSize is the width of one response MAC on the wire.
	ResponseMACSize = 32

	// MaxBodyLen bounds the plaintext length WriteMessage and ReadMessage
	// will handle. It exists to stop a corrupt or hostile header's
	// body_len field from driving an unbounded allocation.
	MaxBodyLen = 1 << 20
)

// ErrBodyTooLarge is returned when a plaintext to send, or a body_len field
// read off the wire, exceeds MaxBodyLen.
var ErrBodyTooLarge = errors.New("ppenc: body exceeds maximum size")

// Writer encrypts and writes outbound messages.
type Writer struct {
	w      io.Writer
	sender *session.Sender
	logger *slog.Logger
}

// NewWriter builds a Writer that frames messages encrypted under sender
// onto w.
func NewWriter(w io.Writer, sender *session.Sender) *Writer {
	return &Writer{w: w, sender: sender, logger: logging.NopLogger()}
}

// SetLogger replaces the writer's logger. A nil logger is ignored.
func (w *Writer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// WriteMessage encrypts plaintext and writes its header and padded body to
// the wire. It returns the response MAC the peer is expected to echo back
// on successful delivery.
func (w *Writer) WriteMessage(plaintext []byte) ([ResponseMACSize]byte, error) {
	if len(plaintext) > MaxBodyLen {
		if w.logger != nil {
			w.logger.Warn("refused to send oversized message", logging.KeyBodyLen, len(plaintext))
		}
		return [ResponseMACSize]byte{}, ErrBodyTooLarge
	}

	bodyLen := uint32(len(plaintext))
	bodyLenPadded := session.BodyPaddedLen(bodyLen)

	body := make([]byte, bodyLenPadded)
	copy(body, plaintext)

	var header [HeaderSize]byte
	_, responseMAC := w.sender.NewMessage(&header, body, bodyLen)

	if _, err := w.w.Write(header[:]); err != nil {
		return responseMAC, fmt.Errorf("ppenc: write header: %w", err)
	}
	if _, err := w.w.Write(body); err != nil {
		return responseMAC, fmt.Errorf("ppenc: write body: %w", err)
	}

	return responseMAC, nil
}

// WriteResponseMAC writes a received message's response MAC back to w, the
// last step the receiving side of a message exchange performs.
func (w *Writer) WriteResponseMAC(mac [ResponseMACSize]byte) error {
	if _, err := w.w.Write(mac[:]); err != nil {
		return fmt.Errorf("ppenc: write response mac: %w", err)
	}
	return nil
}

// Reader reads and decrypts inbound messages.
type Reader struct {
	r        io.Reader
	receiver *session.Receiver
	logger   *slog.Logger
}

// NewReader builds a Reader that decrypts messages read from r under
// receiver.
func NewReader(r io.Reader, receiver *session.Receiver) *Reader {
	return &Reader{r: r, receiver: receiver, logger: logging.NopLogger()}
}

// SetLogger replaces the reader's logger. A nil logger is ignored.
func (r *Reader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// ReadMessage reads, decrypts, and authenticates one message. It returns
// the plaintext body and the response MAC the caller should send back to
// the peer with WriteResponseMAC.
func (r *Reader) ReadMessage() ([]byte, [ResponseMACSize]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return nil, [ResponseMACSize]byte{}, fmt.Errorf("ppenc: read header: %w", err)
	}

	h, err := r.receiver.ReadHeader(&header)
	if err != nil {
		return nil, [ResponseMACSize]byte{}, err
	}

	if h.BodyLen > MaxBodyLen {
		if r.logger != nil {
			r.logger.Warn("rejected oversized body_len", logging.KeyBodyLen, h.BodyLen)
		}
		return nil, [ResponseMACSize]byte{}, ErrBodyTooLarge
	}

	bodyLenPadded := session.BodyPaddedLen(h.BodyLen)
	body := make([]byte, bodyLenPadded)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, [ResponseMACSize]byte{}, fmt.Errorf("ppenc: read body: %w", err)
	}

	responseMAC, err := r.receiver.ReadBody(&h, body)
	if err != nil {
		return nil, responseMAC, err
	}

	return body[:h.BodyLen], responseMAC, nil
}

// ReadResponseMAC reads a 32-byte response MAC sent back by the peer.
func ReadResponseMAC(r io.Reader) ([ResponseMACSize]byte, error) {
	var mac [ResponseMACSize]byte
	if _, err := io.ReadFull(r, mac[:]); err != nil {
		return mac, fmt.Errorf("ppenc: read response mac: %w", err)
	}
	return mac, nil
}
