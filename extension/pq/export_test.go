package pq

import "github.com/lib/pq"

// HandleNotification exposes the handling of a single notification to the tests
func (s *Listener) HandleNotification(target CorrectionTarget, n *pq.Notification) bool {
	return s.correct(target, s.unmarshalCorrection(n))
}
