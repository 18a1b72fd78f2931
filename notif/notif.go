package notif

import "context"

// Message describes a pipeline change worth announcing.
type Message struct {
	Channel     string
	Application string
	Pipeline    string
	Env         string
}

type AppNotifier interface {
	PostMessage(ctx context.Context, msg Message) error
}
