package chacha20header

import "testing"

func testKeyNonce() (*[32]byte, *[12]byte) {
	var key [32]byte
	var nonce [12]byte
	for i := range key {
		key[i] = byte(i * 7)
	}
	for i := range nonce {
		nonce[i] = byte(i + 3)
	}
	return &key, &nonce
}

func TestXorHeaderRoundTrip(t *testing.T) {
	key, nonce := testKeyNonce()

	var header [HeaderSize]byte
	for i := range header {
		header[i] = byte(i * 11)
	}
	orig := header

	enc := New(key, nonce)
	enc.XorHeader(&header)
	if header == orig {
		t.Fatal("XorHeader did not change the header")
	}

	dec := New(key, nonce)
	dec.XorHeader(&header)
	if header != orig {
		t.Fatal("XorHeader with a fresh generator did not invert the first pass")
	}
}

func TestXorHeaderSecondCallUsesOtherBlockHalf(t *testing.T) {
	key, nonce := testKeyNonce()

	var h1, h2 [HeaderSize]byte
	g := New(key, nonce)
	g.XorHeader(&h1)
	g.XorHeader(&h2)

	if h1 == h2 {
		t.Fatal("two successive header keystreams were identical")
	}
}

func TestXorHeaderDeterministic(t *testing.T) {
	key, nonce := testKeyNonce()

	var a, b [HeaderSize]byte
	New(key, nonce).XorHeader(&a)
	New(key, nonce).XorHeader(&b)

	if a != b {
		t.Fatal("XorHeader is not deterministic for identical key/nonce")
	}
}
