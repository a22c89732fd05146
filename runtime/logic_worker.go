// File: runtime/logic_worker.go
package runtime

import "time"

// logicWorker runs the caller's keepalive/timer callback on a fixed
// interval. It never touches the provider's pending-operation table;
// its only job is to fire onKeepalive, which may call Server.Send.
func (s *Server) logicWorker() {
	defer close(s.doneLogic)

	ticker := time.NewTicker(s.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quitLogic:
			return
		case now := <-ticker.C:
			if s.onKeepalive != nil {
				s.onKeepalive(now)
			}
		}
	}
}
