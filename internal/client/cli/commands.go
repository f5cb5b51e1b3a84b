package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/dmitrijs2005/handlewatch/internal/client/client"
	"github.com/dmitrijs2005/handlewatch/internal/common"
)

const timeLayout = "2006-01-02 15:04:05"

func (a *App) report(err error) error {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		a.println("Not logged in or session expired, type 'login'")
	case errors.Is(err, client.ErrUnavailable):
		a.println("Daemon unavailable, try again later")
	default:
		a.println("Error:", err)
	}
	return err
}

// Login asks for the operator id (when not configured) and the access key.
func (a *App) Login(ctx context.Context) error {
	id := a.config.OperatorID
	if id == 0 {
		s, err := GetSimpleText(a.reader, "Operator id:", a.out)
		if err != nil {
			return err
		}
		id, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			a.println("Invalid operator id:", s)
			return err
		}
	}

	key, err := GetPassword("Access key: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.Login(ctx, id, key); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.println("Login failed: wrong operator id or access key")
			return err
		}
		return a.report(err)
	}

	a.mu.Lock()
	a.loggedIn = true
	a.mu.Unlock()
	a.config.OperatorID = id

	a.printf("Logged in as operator %d\n", id)
	return nil
}

func (a *App) Add(ctx context.Context, names []string) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.AddHandles(ctx, names)
	if err != nil {
		return a.report(err)
	}
	a.printf("Added %d, skipped %d\n", resp.Added, resp.Skipped)
	return nil
}

func (a *App) Import(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return a.report(err)
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.ImportHandles(ctx, string(data))
	if err != nil {
		return a.report(err)
	}
	a.printf("Imported %d, skipped %d\n", resp.Added, resp.Skipped)
	return nil
}

func (a *App) Remove(ctx context.Context, name string) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.RemoveHandle(ctx, name); err != nil {
		return a.report(err)
	}
	a.println("Removed", name)
	return nil
}

func (a *App) List(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	handles, err := a.client.ListHandles(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(handles) == 0 {
		a.println("Watch list is empty")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-34s %-9s %-19s %s\n", "HANDLE", "STATUS", "CHECKED", "NOTIFIED")
	for _, h := range handles {
		checked := "-"
		if h.LastChecked != nil {
			checked = h.LastChecked.Local().Format(timeLayout)
		}
		notified := ""
		if h.Notified {
			notified = "yes"
		}
		fmt.Fprintf(&b, "@%-33s %-9s %-19s %s\n", h.Name, h.Status, checked, notified)
	}
	a.printf("%s", b.String())
	return nil
}

func (a *App) Free(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	names, err := a.client.FreeHandles(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(names) == 0 {
		a.println("No free handles")
		return nil
	}
	for _, n := range names {
		a.println("@" + n)
	}
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	n, err := a.client.ClearHandles(ctx)
	if err != nil {
		return a.report(err)
	}
	a.printf("Removed %d handles\n", n)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	s, err := a.client.Stats(ctx)
	if err != nil {
		return a.report(err)
	}
	a.printf("total %d, occupied %d, free %d, error %d, unknown %d\n",
		s.Total, s.Occupied, s.Free, s.Error, s.Unknown)
	return nil
}

func (a *App) History(ctx context.Context, name string, limit string) error {
	n := 0
	if limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v <= 0 {
			a.println("Limit must be a positive number")
			return fmt.Errorf("bad limit %q", limit)
		}
		n = v
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	h, err := a.client.History(ctx, name, n)
	if err != nil {
		return a.report(err)
	}
	if len(h.Changes) == 0 {
		a.printf("No status changes recorded for @%s\n", h.Name)
		return nil
	}
	for _, c := range h.Changes {
		a.printf("%s  %s -> %s\n", c.ChangedAt.Local().Format(timeLayout), c.Old, c.New)
	}
	return nil
}

func (a *App) Check(ctx context.Context, name string) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	r, err := a.client.CheckHandle(ctx, name)
	if err != nil {
		return a.report(err)
	}
	if r.ThrottleWait.Duration > 0 {
		a.printf("Directory is throttling lookups, retry in %s\n", r.ThrottleWait.Duration.Round(time.Second))
		return nil
	}

	msg := fmt.Sprintf("@%s: %s", r.Name, r.Status)
	if r.Previous != "" && r.Previous != r.Status {
		msg += fmt.Sprintf(" (was %s)", r.Previous)
	}
	if !r.Tracked {
		msg += " [not in watch list]"
	}
	if r.Notified {
		msg += " [notified]"
	}
	a.println(msg)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	s, err := a.client.Status(ctx)
	if err != nil {
		return a.report(err)
	}

	auth := "not authorized"
	switch {
	case s.Authorized:
		auth = "authorized"
	case s.HandshakeInProgress:
		auth = "authorization in progress"
	}
	a.printf("monitoring: %s (running=%t, persisted=%t)\ndirectory: %s\n", s.State, s.Running, s.PersistedActive, auth)

	if c := s.LastCycle; c != nil {
		a.printf("last cycle: %s, checked %d/%d, errors %d, freed %d, throttles %d\n",
			c.Finished.Local().Format(timeLayout), c.Checked, c.Handles, c.Errors, c.Freed, c.Throttles)
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.StartMonitoring(ctx); err != nil {
		return a.report(err)
	}
	a.println("Monitoring started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.StopMonitoring(ctx); err != nil {
		return a.report(err)
	}
	a.println("Monitoring stopped")
	return nil
}

func (a *App) Authorize(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	ok, err := a.client.Authorize(ctx)
	if err != nil {
		return a.report(err)
	}
	if ok {
		a.println("Directory session is authorized")
	} else {
		a.println("Authorization started, answer the prompts as they appear")
	}
	return nil
}

func (a *App) Reset(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.ResetSession(ctx); err != nil {
		return a.report(err)
	}
	a.println("Session reset, monitoring stopped")
	return nil
}

// Submit sends text as the answer to the pending credential prompt.
func (a *App) Submit(ctx context.Context, text string) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	kind, err := a.client.SubmitInput(ctx, text)
	if err != nil {
		return a.report(err)
	}
	a.setPending("")
	a.printf("Sent %s\n", kind)
	return nil
}

// Password reads the 2FA password without echo and submits it.
func (a *App) Password(ctx context.Context) error {
	pw, err := GetPassword("2FA password: ", a.out)
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(pw)
	if len(pw) == 0 {
		a.println("Empty password, nothing sent")
		return nil
	}
	return a.Submit(ctx, string(pw))
}

func (a *App) Settings(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	settings, err := a.client.Settings(ctx)
	if err != nil {
		return a.report(err)
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.printf("%-18s %s\n", k, settings[k])
	}
	return nil
}

func (a *App) Set(ctx context.Context, key, value string) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.SetSetting(ctx, key, value); err != nil {
		return a.report(err)
	}
	a.printf("%s = %s\n", key, value)
	return nil
}

// Export asks the daemon for a CSV export. Inline data is written to path,
// or to a timestamped file in the working directory.
func (a *App) Export(ctx context.Context, path string) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	r, err := a.client.Export(ctx)
	if err != nil {
		return a.report(err)
	}

	switch {
	case r.URL != "":
		a.printf("Exported %d handles to %s\n", r.Count, r.URL)
	case r.Path != "":
		a.printf("Exported %d handles to %s on the daemon host\n", r.Count, r.Path)
	default:
		if path == "" {
			path = fmt.Sprintf("handles_%s.csv", time.Now().Format("20060102_150405"))
		}
		if err := atomic.WriteFile(path, bytes.NewReader(r.Data)); err != nil {
			return a.report(err)
		}
		a.printf("Exported %d handles to %s\n", r.Count, path)
	}
	return nil
}
