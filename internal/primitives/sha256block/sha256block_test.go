package sha256block

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"testing"
)

func TestHash48MatchesStdlib(t *testing.T) {
	msg := make([]byte, MessageSize)
	if _, err := rand.Read(msg); err != nil {
		t.Fatal(err)
	}

	want := sha256.Sum256(msg)

	var buf [BlockSize]byte
	copy(buf[:MessageSize], msg)

	var got [32]byte
	Hash48(&got, &buf)

	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("Hash48 = %x, want %x", got, want)
	}
}

func TestHash48ZeroMessage(t *testing.T) {
	msg := make([]byte, MessageSize)
	want := sha256.Sum256(msg)

	var buf [BlockSize]byte
	var got [32]byte
	Hash48(&got, &buf)

	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("Hash48 = %x, want %x", got, want)
	}
}

func TestHash48ManyVectors(t *testing.T) {
	for i := 0; i < 64; i++ {
		msg := bytes.Repeat([]byte{byte(i)}, MessageSize)
		want := sha256.Sum256(msg)

		var buf [BlockSize]byte
		copy(buf[:MessageSize], msg)

		var got [32]byte
		Hash48(&got, &buf)

		if !bytes.Equal(got[:], want[:]) {
			t.Fatalf("vector %d: Hash48 = %x, want %x", i, got, want)
		}
	}
}
