package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/checker"
	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/server/notify"
	"github.com/dmitrijs2005/handlewatch/internal/server/storage"
	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

type handler struct {
	s    *GRPCServer
	done <-chan struct{}
}

var _ api.OperatorServer = (*handler)(nil)

func (h *handler) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	token, err := h.s.deps.Operators.Login(ctx, req.OperatorID, req.AccessKey)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			h.s.logger.Warn(ctx, "login rejected", "operator", req.OperatorID)
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, h.s.toStatus(ctx, "Login", err)
	}
	h.s.logger.Info(ctx, "operator logged in", "operator", req.OperatorID)
	return &api.LoginResponse{AccessToken: token}, nil
}

func (h *handler) Ping(context.Context, *api.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK", Version: h.s.version}, nil
}

func addResponse(r storage.AddResult) *api.AddHandlesResponse {
	return &api.AddHandlesResponse{Added: r.Added, Skipped: r.Skipped}
}

func (h *handler) AddHandles(ctx context.Context, req *api.AddHandlesRequest) (*api.AddHandlesResponse, error) {
	res, err := h.s.deps.Handles.Add(ctx, req.Names)
	if err != nil {
		return nil, h.s.toStatus(ctx, "AddHandles", err)
	}
	return addResponse(res), nil
}

func (h *handler) ImportHandles(ctx context.Context, req *api.ImportHandlesRequest) (*api.AddHandlesResponse, error) {
	res, err := h.s.deps.Handles.Import(ctx, req.Text)
	if err != nil {
		return nil, h.s.toStatus(ctx, "ImportHandles", err)
	}
	return addResponse(res), nil
}

func (h *handler) RemoveHandle(ctx context.Context, req *api.NameRequest) (*api.Empty, error) {
	if err := h.s.deps.Handles.Remove(ctx, req.Name); err != nil {
		return nil, h.s.toStatus(ctx, "RemoveHandle", err)
	}
	return &api.Empty{}, nil
}

func toAPIHandle(hd handles.Handle) api.Handle {
	return api.Handle{
		Name:        hd.Name,
		Status:      string(hd.Status),
		LastChecked: hd.LastChecked,
		Notified:    hd.Notified,
		AddedAt:     hd.AddedAt,
	}
}

func (h *handler) ListHandles(ctx context.Context, _ *api.Empty) (*api.ListHandlesResponse, error) {
	list, err := h.s.deps.Handles.List(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "ListHandles", err)
	}
	out := &api.ListHandlesResponse{Handles: make([]api.Handle, 0, len(list))}
	for _, hd := range list {
		out.Handles = append(out.Handles, toAPIHandle(hd))
	}
	return out, nil
}

func (h *handler) FreeHandles(ctx context.Context, _ *api.Empty) (*api.FreeHandlesResponse, error) {
	names, err := h.s.deps.Handles.Free(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "FreeHandles", err)
	}
	return &api.FreeHandlesResponse{Names: names}, nil
}

func (h *handler) ClearHandles(ctx context.Context, _ *api.Empty) (*api.ClearHandlesResponse, error) {
	n, err := h.s.deps.Handles.Clear(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "ClearHandles", err)
	}
	return &api.ClearHandlesResponse{Removed: n}, nil
}

func (h *handler) Stats(ctx context.Context, _ *api.Empty) (*api.StatsResponse, error) {
	st, err := h.s.deps.Handles.Stats(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "Stats", err)
	}
	return &api.StatsResponse{
		Total:    st.Total,
		Occupied: st.Occupied,
		Free:     st.Free,
		Error:    st.Error,
		Unknown:  st.Unknown,
	}, nil
}

func (h *handler) History(ctx context.Context, req *api.HistoryRequest) (*api.HistoryResponse, error) {
	changes, err := h.s.deps.Handles.History(ctx, req.Name, req.Limit)
	if err != nil {
		return nil, h.s.toStatus(ctx, "History", err)
	}
	out := &api.HistoryResponse{Name: handles.Normalize(req.Name), Changes: make([]api.StatusChange, 0, len(changes))}
	for _, c := range changes {
		out.Changes = append(out.Changes, api.StatusChange{Old: string(c.Old), New: string(c.New), ChangedAt: c.ChangedAt})
	}
	return out, nil
}

func toAPICycle(c *checker.CycleSummary) *api.CycleSummary {
	if c == nil {
		return nil
	}
	return &api.CycleSummary{
		Started:   c.Started,
		Finished:  c.Finished,
		Handles:   c.Handles,
		Checked:   c.Checked,
		Errors:    c.Errors,
		Freed:     c.Freed,
		Throttles: c.Throttles,
	}
}

func (h *handler) Status(ctx context.Context, _ *api.Empty) (*api.StatusResponse, error) {
	st, err := h.s.deps.Monitoring.Status(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "Status", err)
	}
	settings, err := h.s.deps.Monitoring.Settings(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "Status", err)
	}
	return &api.StatusResponse{
		State:               string(st.State),
		Running:             st.Running,
		PersistedActive:     st.PersistedActive,
		Authorized:          st.Authorized,
		HandshakeInProgress: st.HandshakeInProgress,
		LastCycle:           toAPICycle(st.LastCycle),
		Settings:            settings,
	}, nil
}

func (h *handler) StartMonitoring(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	if err := h.s.deps.Monitoring.Start(ctx, operatorFromContext(ctx)); err != nil {
		return nil, h.s.toStatus(ctx, "StartMonitoring", err)
	}
	return &api.Empty{}, nil
}

func (h *handler) StopMonitoring(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	if err := h.s.deps.Monitoring.Stop(ctx); err != nil {
		return nil, h.s.toStatus(ctx, "StopMonitoring", err)
	}
	return &api.Empty{}, nil
}

func (h *handler) CheckHandle(ctx context.Context, req *api.NameRequest) (*api.CheckHandleResponse, error) {
	res, err := h.s.deps.Monitoring.CheckNow(ctx, operatorFromContext(ctx), req.Name)
	if err != nil {
		return nil, h.s.toStatus(ctx, "CheckHandle", err)
	}
	return &api.CheckHandleResponse{
		Name:         res.Name,
		Status:       string(res.Status),
		Previous:     string(res.Previous),
		Tracked:      res.Tracked,
		Notified:     res.Notified,
		ThrottleWait: timex.Duration{Duration: res.ThrottleWait},
	}, nil
}

func (h *handler) Authorize(ctx context.Context, _ *api.Empty) (*api.AuthorizeResponse, error) {
	ok, err := h.s.deps.Session.Authorize(ctx, operatorFromContext(ctx))
	if err != nil {
		return nil, h.s.toStatus(ctx, "Authorize", err)
	}
	return &api.AuthorizeResponse{Authorized: ok}, nil
}

func (h *handler) ResetSession(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	if err := h.s.deps.Session.Reset(ctx, operatorFromContext(ctx)); err != nil {
		return nil, h.s.toStatus(ctx, "ResetSession", err)
	}
	return &api.Empty{}, nil
}

func (h *handler) SubmitInput(ctx context.Context, req *api.SubmitInputRequest) (*api.SubmitInputResponse, error) {
	kind, err := h.s.deps.Session.SubmitInput(ctx, operatorFromContext(ctx), req.Text)
	if err != nil {
		return nil, h.s.toStatus(ctx, "SubmitInput", err)
	}
	return &api.SubmitInputResponse{Kind: string(kind)}, nil
}

func (h *handler) GetSettings(ctx context.Context, _ *api.Empty) (*api.SettingsResponse, error) {
	settings, err := h.s.deps.Monitoring.Settings(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "GetSettings", err)
	}
	return &api.SettingsResponse{Settings: settings}, nil
}

func (h *handler) SetSetting(ctx context.Context, req *api.SetSettingRequest) (*api.Empty, error) {
	if err := h.s.deps.Monitoring.SetSetting(ctx, req.Key, req.Value); err != nil {
		return nil, h.s.toStatus(ctx, "SetSetting", err)
	}
	return &api.Empty{}, nil
}

func (h *handler) Export(ctx context.Context, _ *api.Empty) (*api.ExportResponse, error) {
	res, err := h.s.deps.Handles.Export(ctx)
	if err != nil {
		return nil, h.s.toStatus(ctx, "Export", err)
	}
	out := &api.ExportResponse{Count: res.Count, Path: res.Path, Key: res.Key, URL: res.URL}
	// Without a download location the console receives the CSV inline.
	if res.URL == "" && res.Path == "" {
		out.Data = res.Data
	}
	return out, nil
}

func toAPIEvent(ev notify.Event) *api.Event {
	return &api.Event{
		ID:         ev.ID,
		Kind:       string(ev.Kind),
		Text:       ev.Text,
		Handle:     ev.Handle,
		Credential: string(ev.Credential),
		Time:       ev.Time,
	}
}

// Events streams hub events for the calling operator until the client goes
// away.
func (h *handler) Events(_ *api.Empty, stream api.EventsServer) error {
	ctx := stream.Context()
	id := operatorFromContext(ctx)
	ch, unsubscribe := h.s.deps.Events.Subscribe(id)
	defer unsubscribe()

	h.s.logger.Info(ctx, "event stream opened", "operator", id)
	for {
		select {
		case <-ctx.Done():
			h.s.logger.Info(ctx, "event stream closed", "operator", id)
			return nil
		case <-h.done:
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(toAPIEvent(ev)); err != nil {
				return err
			}
		}
	}
}
