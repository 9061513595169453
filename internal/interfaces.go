package internal

import "context"

// Classifier maps a URL to the platform it belongs to
type Classifier interface {
	Classify(url string) Platform
}

// NoticeLevel is the severity of a user-visible notification
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// String returns the string representation of the level
func (l NoticeLevel) String() string {
	if l == NoticeError {
		return "error"
	}
	return "info"
}

// Notice is a user-visible notification produced by an action
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier surfaces notices to the user
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

// Notify implements Notifier
func (f NotifierFunc) Notify(n Notice) { f(n) }

// RateLimiter throttles byte transfers
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
