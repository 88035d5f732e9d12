package main

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/metrics"
	"github.com/flickpp/ppenc/internal/primitives/chacha8"
	"github.com/flickpp/ppenc/internal/protocol"
	"github.com/flickpp/ppenc/internal/session"
	"github.com/spf13/cobra"
)

// demoToken stands in for the bootstrap token example-client/client.c embeds
// as a build-time constant. The demo server never inspects it (see the
// Non-goals in SPEC_FULL.md §4), so its value is arbitrary as long as it is
// exactly tokenSize bytes.
var demoToken = [tokenSize]byte{'p', 'p', 'e', 'n', 'c', '-', 'd', 'e', 'm', 'o'}

func sendCmd() *cobra.Command {
	var (
		configPath string
		connect    string
		messages   []string
		interval   time.Duration
		ratchet    bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Connect to a PPEnc demo server and send encrypted messages",
		Long: `Run a PPEnc demo client: perform the bootstrap handshake as the initiator,
then encrypt and send each --message in turn, verifying the response MAC
echoed back by the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if connect != "" {
				cfg.Connect = connect
			}
			if len(messages) == 0 {
				messages = []string{"hello from ppenc-demo", "second message"}
			}

			logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
			m := metrics.Default()

			senderRNGKey, err := cfg.GetSenderRNGKey()
			if err != nil {
				return fmt.Errorf("sender_rng_key: %w", err)
			}
			headerSalt, err := cfg.GetHeaderSalt()
			if err != nil {
				return fmt.Errorf("header_salt: %w", err)
			}
			bodySalt, err := cfg.GetBodySalt()
			if err != nil {
				return fmt.Errorf("body_salt: %w", err)
			}

			conn, err := net.Dial("tcp", cfg.Connect)
			if err != nil {
				return fmt.Errorf("dial %s: %w", cfg.Connect, err)
			}
			defer conn.Close()

			sender, err := handshake(conn, &senderRNGKey, &headerSalt, &bodySalt)
			if err != nil {
				return fmt.Errorf("handshake: %w", err)
			}
			sender.SetLogger(logger)

			writer := protocol.NewWriter(conn, sender)
			writer.SetLogger(logger)

			logger.Info("session established", logging.KeyRemoteAddr, cfg.Connect)

			for i, msg := range messages {
				if i > 0 && interval > 0 {
					time.Sleep(interval)
				}

				if ratchet {
					sender.NewBodyKey()
					m.RecordBodyKeyRatchet()
				}

				sent := time.Now()
				expectedMAC, err := writer.WriteMessage([]byte(msg))
				if err != nil {
					return fmt.Errorf("write message %d: %w", i, err)
				}
				m.RecordMessageSent()

				gotMAC, err := protocol.ReadResponseMAC(conn)
				if err != nil {
					return fmt.Errorf("read response_mac for message %d: %w", i, err)
				}
				m.RecordResponseMACLatency(time.Since(sent).Seconds())

				if subtle.ConstantTimeCompare(expectedMAC[:], gotMAC[:]) != 1 {
					m.RecordFrameError("bad_response_mac")
					logger.Warn("response_mac mismatch",
						logging.KeySeqNum, sender.SeqNum()-1,
						logging.KeyResponseMAC, fmt.Sprintf("%x", gotMAC),
					)
					continue
				}

				logger.Info("message acknowledged",
					logging.KeySeqNum, sender.SeqNum()-1,
					logging.KeyResponseMAC, fmt.Sprintf("%x", gotMAC),
				)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&connect, "connect", "", "TCP address to dial (overrides config)")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "Message to send (repeatable; defaults to two demo messages)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Delay between messages")
	cmd.Flags().BoolVar(&ratchet, "ratchet", false, "Advance the body-key ladder before each message")

	return cmd
}

// handshake performs the client side of the bootstrap exchange
// example-client/client.c implements: send the token, seed a chacha8
// generator keyed by senderRNGKey, send the RNG-derived header_rng_nonce,
// then read back the server's header_state_init and body_state0.
func handshake(conn net.Conn, senderRNGKey *[32]byte, headerSalt *[16]byte, bodySalt *[16]byte) (*session.Sender, error) {
	if _, err := conn.Write(demoToken[:]); err != nil {
		return nil, fmt.Errorf("write token: %w", err)
	}

	var rngNonce [8]byte
	if _, err := rand.Read(rngNonce[:]); err != nil {
		return nil, fmt.Errorf("generate rng nonce: %w", err)
	}
	rng := chacha8.New(senderRNGKey, &rngNonce)

	var headerRNGNonce [12]byte
	rng.NextBytes(headerRNGNonce[:])

	if _, err := conn.Write(headerRNGNonce[:]); err != nil {
		return nil, fmt.Errorf("write header_rng_nonce: %w", err)
	}

	var headerStateInit, bodyState0 [32]byte
	if _, err := io.ReadFull(conn, headerStateInit[:]); err != nil {
		return nil, fmt.Errorf("read header_state_init: %w", err)
	}
	if _, err := io.ReadFull(conn, bodyState0[:]); err != nil {
		return nil, fmt.Errorf("read body_state0: %w", err)
	}

	return session.NewSender(rng, headerSalt, &headerStateInit, &headerRNGNonce, bodySalt, &bodyState0), nil
}
