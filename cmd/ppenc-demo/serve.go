package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/metrics"
	"github.com/flickpp/ppenc/internal/protocol"
	"github.com/flickpp/ppenc/internal/recovery"
	"github.com/flickpp/ppenc/internal/session"
	"github.com/spf13/cobra"
)

// tokenSize is the width of the bootstrap token example-client/client.c
// sends ahead of the handshake. The demo server reads and discards it: peer
// authentication is out of scope (see the Non-goals in SPEC_FULL.md §4).
const tokenSize = 100

func serveCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept PPEnc connections and echo response MACs",
		Long: `Run a PPEnc demo server: accept one TCP connection per peer, perform the
bootstrap handshake (token, header_rng_nonce, header_state_init,
body_state0), then decrypt and log each inbound message, writing back its
response MAC.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
			m := metrics.Default()

			headerSalt, err := cfg.GetHeaderSalt()
			if err != nil {
				return fmt.Errorf("header_salt: %w", err)
			}
			bodySalt, err := cfg.GetBodySalt()
			if err != nil {
				return fmt.Errorf("body_salt: %w", err)
			}

			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			defer ln.Close()

			logger.Info("serving", logging.KeyLocalAddr, ln.Addr().String())

			for {
				conn, err := ln.Accept()
				if err != nil {
					return fmt.Errorf("accept: %w", err)
				}

				go func() {
					defer recovery.RecoverWithLog(logger, "ppenc-demo-serve-conn")
					handleConn(conn, logger, m, &headerSalt, &bodySalt)
				}()
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "TCP listen address (overrides config)")

	return cmd
}

// handleConn runs the server side of one PPEnc connection to completion: the
// bootstrap handshake followed by the read-decrypt-respond message loop. It
// returns once the peer disconnects or sends an unrecoverable frame.
func handleConn(conn net.Conn, logger *slog.Logger, m *metrics.Metrics, headerSalt *[16]byte, bodySalt *[16]byte) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logger.Info("connection accepted", logging.KeyRemoteAddr, remote)

	var token [tokenSize]byte
	if _, err := io.ReadFull(conn, token[:]); err != nil {
		logger.Warn("handshake failed reading token", logging.KeyRemoteAddr, remote, logging.KeyError, err)
		return
	}

	var headerRNGNonce [12]byte
	if _, err := io.ReadFull(conn, headerRNGNonce[:]); err != nil {
		logger.Warn("handshake failed reading header_rng_nonce", logging.KeyRemoteAddr, remote, logging.KeyError, err)
		return
	}

	var headerStateInit, bodyState0 [32]byte
	if _, err := rand.Read(headerStateInit[:]); err != nil {
		logger.Error("failed to generate header_state_init", logging.KeyError, err)
		return
	}
	if _, err := rand.Read(bodyState0[:]); err != nil {
		logger.Error("failed to generate body_state0", logging.KeyError, err)
		return
	}

	if _, err := conn.Write(headerStateInit[:]); err != nil {
		logger.Warn("handshake failed writing header_state_init", logging.KeyRemoteAddr, remote, logging.KeyError, err)
		return
	}
	if _, err := conn.Write(bodyState0[:]); err != nil {
		logger.Warn("handshake failed writing body_state0", logging.KeyRemoteAddr, remote, logging.KeyError, err)
		return
	}

	receiver := session.NewReceiver(headerSalt, &headerStateInit, &headerRNGNonce, bodySalt, &bodyState0)
	receiver.SetLogger(logger)

	reader := protocol.NewReader(conn, receiver)
	reader.SetLogger(logger)

	logger.Info("session established", logging.KeyRemoteAddr, remote)

	for {
		prevBodyKeyNum := receiver.BodyKeyNum()

		body, responseMAC, err := reader.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("read failed", logging.KeyRemoteAddr, remote, logging.KeyError, err)
				m.RecordFrameError(frameErrorBucket(err))
			}
			return
		}

		for i := prevBodyKeyNum; i < receiver.BodyKeyNum(); i++ {
			m.RecordBodyKeyRatchet()
		}

		m.RecordMessageReceived()
		logger.Info("message received",
			logging.KeyRemoteAddr, remote,
			logging.KeySeqNum, receiver.SeqNum()-1,
			logging.KeyBodyLen, len(body),
		)

		if _, err := conn.Write(responseMAC[:]); err != nil {
			logger.Warn("failed to write response_mac", logging.KeyRemoteAddr, remote, logging.KeyError, err)
			return
		}
	}
}
