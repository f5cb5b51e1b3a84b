package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the operator
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Persisted setting keys.
const (
	SettingMonitoringActive = "monitoring_active"
	SettingBatchSize        = "batch_size"
	SettingBatchDelay       = "batch_delay"
	SettingCycleDelay       = "cycle_delay"
	SettingConcurrency      = "concurrency"
)
