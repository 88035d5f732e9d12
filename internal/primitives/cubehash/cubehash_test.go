package cubehash

import (
	"bytes"
	"testing"
)

func TestSumEmpty(t *testing.T) {
	var got [128]byte
	Sum(&got, nil)
	if bytes.Equal(got[:OutputSize], make([]byte, OutputSize)) {
		t.Fatal("empty-input digest should not be all zero")
	}
}

func TestSumDeterministic(t *testing.T) {
	msg := []byte("Hello")

	var a, b [128]byte
	Sum(&a, msg)
	Sum(&b, msg)

	if !bytes.Equal(a[:], b[:]) {
		t.Fatal("Sum is not deterministic for identical input")
	}
}

func TestSumDiffersOnSingleBitFlip(t *testing.T) {
	msg1 := []byte("Hello")
	msg2 := []byte("Hdllo")

	var d1, d2 [128]byte
	Sum(&d1, msg1)
	Sum(&d2, msg2)

	if bytes.Equal(d1[:], d2[:]) {
		t.Fatal("single byte change produced identical digest")
	}
}

func TestSumDoesNotMutateInput(t *testing.T) {
	msg := []byte("Hello, world! This is a message longer than one block.")
	orig := bytes.Clone(msg)

	var dst [128]byte
	Sum(&dst, msg)

	if !bytes.Equal(msg, orig) {
		t.Fatal("Sum mutated its input message")
	}
}

func TestSumMultiBlock(t *testing.T) {
	msg := bytes.Repeat([]byte{0x42}, 100)

	var got [128]byte
	Sum(&got, msg)

	if bytes.Equal(got[:OutputSize], make([]byte, OutputSize)) {
		t.Fatal("multi-block digest should not be all zero")
	}
}
