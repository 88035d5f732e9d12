package main

import (
	"errors"

	"github.com/flickpp/ppenc/internal/protocol"
	"github.com/flickpp/ppenc/internal/session"
)

// frameErrorBucket classifies an error returned from reading or writing a
// PPEnc frame into one of the metrics.FrameErrors taxonomy buckets.
func frameErrorBucket(err error) string {
	switch {
	case errors.Is(err, session.ErrBadVersion):
		return "bad_version"
	case errors.Is(err, session.ErrBadSeqNum):
		return "bad_seq_num"
	case errors.Is(err, session.ErrBadBodyKeyNum):
		return "bad_body_key_num"
	case errors.Is(err, session.ErrBadBodyChecksum):
		return "bad_body_checksum"
	case errors.Is(err, protocol.ErrBodyTooLarge):
		return "body_too_large"
	default:
		return "io_error"
	}
}
