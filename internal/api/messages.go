package api

import (
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

type Empty struct{}

type LoginRequest struct {
	OperatorID int64  `json:"operator_id"`
	AccessKey  []byte `json:"access_key"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type PingResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type AddHandlesRequest struct {
	Names []string `json:"names"`
}

type ImportHandlesRequest struct {
	Text string `json:"text"`
}

type AddHandlesResponse struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type Handle struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	Notified    bool       `json:"notified"`
	AddedAt     time.Time  `json:"added_at"`
}

type ListHandlesResponse struct {
	Handles []Handle `json:"handles"`
}

type FreeHandlesResponse struct {
	Names []string `json:"names"`
}

type ClearHandlesResponse struct {
	Removed int64 `json:"removed"`
}

type StatsResponse struct {
	Total    int `json:"total"`
	Occupied int `json:"occupied"`
	Free     int `json:"free"`
	Error    int `json:"error"`
	Unknown  int `json:"unknown"`
}

type HistoryRequest struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

type StatusChange struct {
	Old       string    `json:"old"`
	New       string    `json:"new"`
	ChangedAt time.Time `json:"changed_at"`
}

type HistoryResponse struct {
	Name    string         `json:"name"`
	Changes []StatusChange `json:"changes"`
}

type CycleSummary struct {
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Handles   int       `json:"handles"`
	Checked   int       `json:"checked"`
	Errors    int       `json:"errors"`
	Freed     int       `json:"freed"`
	Throttles int       `json:"throttles"`
}

type StatusResponse struct {
	State               string            `json:"state"`
	Running             bool              `json:"running"`
	PersistedActive     bool              `json:"persisted_active"`
	Authorized          bool              `json:"authorized"`
	HandshakeInProgress bool              `json:"handshake_in_progress"`
	LastCycle           *CycleSummary     `json:"last_cycle,omitempty"`
	Settings            map[string]string `json:"settings"`
}

type CheckHandleResponse struct {
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	Previous     string         `json:"previous,omitempty"`
	Tracked      bool           `json:"tracked"`
	Notified     bool           `json:"notified"`
	ThrottleWait timex.Duration `json:"throttle_wait"`
}

type AuthorizeResponse struct {
	Authorized bool `json:"authorized"`
}

type SubmitInputRequest struct {
	Text string `json:"text"`
}

type SubmitInputResponse struct {
	Kind string `json:"kind"`
}

type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

type SetSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ExportResponse struct {
	Count int    `json:"count"`
	Path  string `json:"path,omitempty"`
	Key   string `json:"key,omitempty"`
	URL   string `json:"url,omitempty"`
	Data  []byte `json:"data,omitempty"`
}

// Event kinds mirror the daemon's notification hub.
const (
	EventPrompt = "prompt"
	EventFreed  = "freed"
	EventAuth   = "auth"
	EventInfo   = "info"
)

type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	Handle     string    `json:"handle,omitempty"`
	Credential string    `json:"credential,omitempty"`
	Time       time.Time `json:"time"`
}
