package cli

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

// watchEvents keeps an event stream open until ctx is done, reconnecting
// after ReconnectInterval whenever it breaks.
func (a *App) watchEvents(ctx context.Context) {
	for {
		err := a.streamEvents(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			a.println("[events] stream lost:", err)
		}
		if timex.Sleep(ctx, a.config.ReconnectInterval) != nil {
			return
		}
	}
}

func (a *App) streamEvents(ctx context.Context) error {
	stream, err := a.client.Events(ctx)
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		if err != nil {
			return err
		}
		a.handleEvent(ev)
	}
}

func (a *App) handleEvent(ev *api.Event) {
	switch ev.Kind {
	case api.EventPrompt:
		a.setPending(ev.Credential)
		a.println("[auth]", ev.Text)
		if ev.Credential == "password" {
			a.println("[auth] type 'password' to enter it without echo")
		}
	case api.EventAuth:
		a.setPending("")
		a.println("[auth]", ev.Text)
	case api.EventFreed:
		a.println("[free] @"+ev.Handle, ev.Text)
	default:
		a.println("[info]", ev.Text)
	}
}
