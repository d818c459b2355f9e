package emote

// Notification titles.
const (
	TitleUploadFailed = "Failed to convert image"
	TitleRenderFailed = "Failed to render effect"
	TitleContextLost  = "Rendering disabled"
)

// Notification is a user-facing message.
type Notification struct {
	Title   string
	Message string
	Err     error
}

// Notifier shows notifications to the user. Notify may be called from any
// goroutine and must not block on the engine that raised it.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

type logNotifier struct{}

func (logNotifier) Notify(n Notification) {
	Logger().Warn(n.Title, "message", n.Message, "err", n.Err)
}
