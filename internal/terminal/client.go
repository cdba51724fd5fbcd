package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tradesync/internal/model"
)

// ErrTimeout is returned when the bridge does not answer in time.
var ErrTimeout = errors.New("bridge request timeout")

const writeTimeout = 10 * time.Second

// session implements Session over a single bridge WebSocket connection.
type session struct {
	cfg    BridgeConfig
	logger *slog.Logger
	conn   *websocket.Conn
	info   AccountInfo

	// Write serialization
	writeMu sync.Mutex

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[int64]chan Response
	readErr   error
	cmdID     atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, cfg BridgeConfig, logger *slog.Logger) *session {
	s := &session{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		pending: make(map[int64]chan Response),
		done:    make(chan struct{}),
	}

	go s.readLoop()
	if cfg.PingInterval > 0 {
		go s.heartbeatLoop()
	}

	return s
}

// Account returns the account info reported at login.
func (s *session) Account() AccountInfo {
	return s.info
}

// FetchClosedDeals requests deal history and pairs entry/exit deals.
func (s *session) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]model.RawDeal, error) {
	var history []HistoryDeal
	params := HistoryParams{From: from.Unix(), To: to.Unix()}
	if err := s.call(ctx, "history_deals", params, &history); err != nil {
		return nil, model.NewError(model.KindConnection, "fetch closed deals", err)
	}

	deals := PairDeals(history)

	// The bridge filters on deal time, which for exits is the close time, but
	// entry deals outside the window are sometimes included for pairing.
	out := deals[:0]
	for _, d := range deals {
		if d.CloseTime == nil || (*d.CloseTime >= params.From && *d.CloseTime <= params.To) {
			out = append(out, d)
		}
	}

	s.logger.Debug("fetched deal history",
		"login", s.info.Login,
		"history_deals", len(history),
		"closed_deals", len(out),
	)

	return out, nil
}

// Close gracefully closes the connection.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

// call sends a request and waits for the response with the same ID.
func (s *session) call(ctx context.Context, method string, params, result any) error {
	id := s.cmdID.Add(1)
	ch := make(chan Response, 1)

	s.pendingMu.Lock()
	if s.readErr != nil {
		err := s.readErr
		s.pendingMu.Unlock()
		return err
	}
	s.pending[id] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(Request{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	if err := s.send(data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	var timeout <-chan time.Time
	if s.cfg.RequestTimeout > 0 {
		timer := time.NewTimer(s.cfg.RequestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return s.closedErr()
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timeout:
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) closedErr() error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.readErr != nil {
		return s.readErr
	}
	return ErrNotConnected
}

// readLoop routes responses to waiting callers until the connection fails.
func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				err = ErrSessionClosed
			default:
				s.logger.Debug("bridge read failed", "error", err)
			}
			s.failPending(fmt.Errorf("bridge connection lost: %w", err))
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			s.logger.Warn("dropping malformed bridge message", "error", err, "len", len(data))
			continue
		}

		s.pendingMu.Lock()
		ch, ok := s.pending[resp.ID]
		s.pendingMu.Unlock()

		if !ok {
			s.logger.Debug("dropping unmatched bridge response", "id", resp.ID)
			continue
		}

		select {
		case ch <- resp:
		default:
		}
	}
}

func (s *session) failPending(err error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.readErr = err
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// heartbeatLoop keeps the bridge connection alive during long fetches.
func (s *session) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(writeTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
