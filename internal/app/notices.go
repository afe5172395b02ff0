package app

import "time"

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

// NoticeLevel values.
const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is one queued user-facing message.
type Notice struct {
	Level   NoticeLevel
	Message string
	At      time.Time
}

// maxNotices bounds the queue when nobody drains it.
const maxNotices = 64

// Notices drains and returns the queued notices, oldest first.
func (s *Store) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func (s *Store) pushNotice(level NoticeLevel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Message: message, At: s.clock().UTC()})
	if over := len(s.notices) - maxNotices; over > 0 {
		s.notices = s.notices[over:]
	}
}
