package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/version"
)

// Bridge is a Terminal reached through a bridge WebSocket endpoint.
type Bridge struct {
	cfg    BridgeConfig
	logger *slog.Logger
}

// NewBridge creates a bridge terminal. Zero timeouts in cfg fall back to
// DefaultBridgeConfig.
func NewBridge(cfg BridgeConfig, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultBridgeConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	return &Bridge{cfg: cfg, logger: logger}
}

// Login dials the bridge and authenticates. Every failure at this step,
// including an unreachable terminal, is reported as an AuthenticationError.
func (b *Bridge) Login(ctx context.Context, creds Credentials) (Session, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())
	if b.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+b.cfg.Token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: b.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		return nil, model.NewError(model.KindAuthentication, "login",
			fmt.Errorf("terminal unreachable: %w", err))
	}

	s := newSession(conn, b.cfg, b.logger)

	var info AccountInfo
	params := LoginParams{
		Login:    creds.Login,
		Password: creds.Password,
		Server:   creds.Server,
		Path:     creds.Path,
	}
	if err := s.call(ctx, "login", params, &info); err != nil {
		s.Close()
		var remote *RemoteError
		if errors.As(err, &remote) && remote.IsAuthFailure() {
			return nil, model.NewError(model.KindAuthentication, "login",
				fmt.Errorf("credentials rejected: %w", err))
		}
		return nil, model.NewError(model.KindAuthentication, "login",
			fmt.Errorf("terminal login failed: %w", err))
	}

	if info.Login == 0 {
		s.Close()
		return nil, model.Errorf(model.KindAuthentication, "login", "connected but no account info returned")
	}
	if creds.Login != 0 && info.Login != creds.Login {
		s.Close()
		return nil, model.Errorf(model.KindAuthentication, "login",
			"terminal is logged in to %d, expected %d", info.Login, creds.Login)
	}

	s.info = info

	b.logger.Debug("terminal session opened",
		"login", info.Login,
		"server", info.Server,
		"url", b.cfg.URL,
	)

	return s, nil
}
