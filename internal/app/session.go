package app

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ringio"
	"ringio/internal/lineproto"
	"ringio/internal/shared/logger"
)

// handleSession drains one connection: messages are scanned out of a
// ring-buffered reader and logged until the client sends an
// end-of-stream marker, the stream ends, or the per-session ingest
// limit is reached. The returned string is the reason the session
// closed, as logged.
func (s *Server) handleSession(conn net.Conn, transport, remote string) string {
	connID := uuid.NewString()
	l := logger.WithComponent("session").With().
		Str("conn_id", connID).
		Str("transport", transport).
		Str("remote_addr", remote).
		Logger()

	s.totalSessions.Add(1)
	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	start := time.Now()
	maxRead := uint64(s.cfg.CommonConf.MaxRead)

	buf := ringio.NewRingBuffer(s.cfg.CommonConf.Capacity)
	reader := ringio.NewBufferedReader(buf, conn)
	scanner := lineproto.NewScanner(reader, s.cfg.CommonConf.MaxMessage)

	l.Info().Msg("Session opened.")

	var messages uint64
	reason := "limit"
	for reader.NRead() < maxRead {
		msg, err := scanner.Next()
		if err == io.EOF {
			reason = "eof"
			break
		}
		if err != nil {
			l.Warn().Err(err).Msg("Session read failed.")
			reason = "error"
			break
		}
		messages++
		s.totalMessages.Add(1)
		if lineproto.EndOfStream(msg) {
			reason = "client_end"
			break
		}
		l.Debug().Int("size", len(msg)).Str("preview", previewOf(msg)).Msg("Message received.")
	}

	l.Info().
		Uint64("messages", messages).
		Uint64("ingested", reader.NRead()).
		Uint64("delivered", reader.Pos()).
		Str("reason", reason).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Session closed.")
	return reason
}

// previewOf renders the head of a message as a quoted string so binary
// garbage cannot mangle the log stream.
func previewOf(msg []byte) string {
	const max = 32
	if len(msg) > max {
		return strconv.Quote(string(msg[:max])) + "..."
	}
	return strconv.Quote(string(msg))
}
