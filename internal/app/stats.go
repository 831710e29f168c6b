package app

import (
	"time"

	"ringio/internal/shared/logger"
)

// Stats is a point-in-time snapshot of the server's counters.
type Stats struct {
	ActiveConns   int64
	TotalSessions uint64
	TotalMessages uint64
	IngressBytes  uint64
	EgressBytes   uint64
}

func (s *Server) Stats() Stats {
	return Stats{
		ActiveConns:   s.activeConns.Load(),
		TotalSessions: s.totalSessions.Load(),
		TotalMessages: s.totalMessages.Load(),
		IngressBytes:  s.ingressBytes.Load(),
		EgressBytes:   s.egressBytes.Load(),
	}
}

// statsLoop periodically logs the server's counters together with the
// transfer rates since the previous tick.
func (s *Server) statsLoop() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var lastIngress, lastEgress uint64
	var lastTimestamp time.Time

	for {
		select {
		case <-ticker.C:
			currentIngress := s.ingressBytes.Load()
			currentEgress := s.egressBytes.Load()

			now := time.Now()
			var inRate, outRate uint64
			if !lastTimestamp.IsZero() {
				elapsed := now.Sub(lastTimestamp).Seconds()
				if elapsed > 0 {
					inRate = uint64(float64(currentIngress-lastIngress) / elapsed)
					outRate = uint64(float64(currentEgress-lastEgress) / elapsed)
				}
			}
			lastIngress = currentIngress
			lastEgress = currentEgress
			lastTimestamp = now

			logger.Debug().
				Int64("active_conns", s.activeConns.Load()).
				Uint64("sessions", s.totalSessions.Load()).
				Uint64("messages", s.totalMessages.Load()).
				Uint64("in_rate", inRate).
				Uint64("out_rate", outRate).
				Msg("Server stats.")
		case <-s.done:
			return
		}
	}
}
