package providers

import "context"

// NoticeLevel classifies a user-visible notice
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient, user-visible notification
type Notice struct {
	Level       NoticeLevel `json:"level"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

// Notifier delivers notices to the user
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, notice Notice)

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	f(ctx, notice)
}
