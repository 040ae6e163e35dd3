package app

import (
	"github.com/nats-io/nats.go"

	"github.com/adanyl0v/go-tasks/internal/config"
)

var globalNATSConn *nats.Conn

// MustConnectNATS is a no-op when NATS_URL is empty.
func MustConnectNATS() {
	cfg := config.Global().NATS
	if cfg.URL == "" {
		globalLogger.Debug().Msg("nats disabled")
		return
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				globalLogger.Warn().
					Err(err).
					Msg("disconnected from nats")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			globalLogger.Info().
				Str("url", c.ConnectedUrl()).
				Msg("reconnected to nats")
		}),
	)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("url", cfg.URL).
			Msg("failed to connect to nats")
		panic(err)
	}
	globalNATSConn = conn

	globalLogger.Info().
		Str("url", conn.ConnectedUrl()).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("connected to nats")
}

func DisconnectNATS() {
	if globalNATSConn == nil {
		return
	}
	err := globalNATSConn.Drain()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to drain nats connection")
		globalNATSConn.Close()
		return
	}
	globalLogger.Info().Msg("disconnected from nats")
}
