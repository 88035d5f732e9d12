package main

import (
	"crypto/subtle"
	"net"
	"testing"
	"time"

	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/metrics"
	"github.com/flickpp/ppenc/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

func TestServeHandshakeAndMessageRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	var headerSalt [16]byte
	var bodySalt [16]byte
	for i := range headerSalt {
		headerSalt[i] = byte(i)
	}
	for i := range bodySalt {
		bodySalt[i] = byte(0xA0 + i)
	}

	var senderRNGKey [32]byte
	for i := range senderRNGKey {
		senderRNGKey[i] = byte(i * 3)
	}

	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	logger := logging.NopLogger()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleConn(serverConn, logger, m, &headerSalt, &bodySalt)
	}()

	sender, err := handshake(clientConn, &senderRNGKey, &headerSalt, &bodySalt)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	writer := protocol.NewWriter(clientConn, sender)

	const plaintext = "integration test message"
	expectedMAC, err := writer.WriteMessage([]byte(plaintext))
	if err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	gotMAC, err := protocol.ReadResponseMAC(clientConn)
	if err != nil {
		t.Fatalf("ReadResponseMAC: %v", err)
	}

	if subtle.ConstantTimeCompare(expectedMAC[:], gotMAC[:]) != 1 {
		t.Fatalf("response mac mismatch: expected %x got %x", expectedMAC, gotMAC)
	}

	clientConn.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConn did not return after connection close")
	}
}

func TestServeRatchetedMessageRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	var headerSalt, bodySalt [16]byte
	var senderRNGKey [32]byte
	for i := range senderRNGKey {
		senderRNGKey[i] = byte(i + 1)
	}

	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	logger := logging.NopLogger()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleConn(serverConn, logger, m, &headerSalt, &bodySalt)
	}()

	sender, err := handshake(clientConn, &senderRNGKey, &headerSalt, &bodySalt)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	writer := protocol.NewWriter(clientConn, sender)

	sender.NewBodyKey()
	sender.NewBodyKey()

	expectedMAC, err := writer.WriteMessage([]byte("after two ratchets"))
	if err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	gotMAC, err := protocol.ReadResponseMAC(clientConn)
	if err != nil {
		t.Fatalf("ReadResponseMAC: %v", err)
	}
	if subtle.ConstantTimeCompare(expectedMAC[:], gotMAC[:]) != 1 {
		t.Fatalf("response mac mismatch after ratchet: expected %x got %x", expectedMAC, gotMAC)
	}

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConn did not return after connection close")
	}
}
