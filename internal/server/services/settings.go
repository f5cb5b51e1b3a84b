package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/common"
)

// Tunables are the runtime-adjustable monitoring parameters.
type Tunables struct {
	Concurrency int
	BatchSize   int
	BatchDelay  time.Duration
	CycleDelay  time.Duration
}

type settingRule struct {
	min, max int
	seconds  bool
}

var settingRules = map[string]settingRule{
	common.SettingBatchSize:   {min: 10, max: 200},
	common.SettingBatchDelay:  {min: 1, max: 60, seconds: true},
	common.SettingCycleDelay:  {min: 1, max: 3600, seconds: true},
	common.SettingConcurrency: {min: 1, max: 20},
}

// SettingKeys lists the adjustable settings.
func SettingKeys() []string {
	return []string{
		common.SettingBatchSize,
		common.SettingBatchDelay,
		common.SettingCycleDelay,
		common.SettingConcurrency,
	}
}

// ParseSetting validates value for key. Delays are whole seconds.
func ParseSetting(key, value string) (int, error) {
	rule, ok := settingRules[key]
	if !ok {
		return 0, fmt.Errorf("%w: unknown key %q", common.ErrInvalidSetting, key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrInvalidSetting, key)
	}
	if n < rule.min || n > rule.max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", common.ErrInvalidSetting, key, rule.min, rule.max)
	}
	return n, nil
}

func (t *Tunables) apply(key string, n int) {
	switch key {
	case common.SettingBatchSize:
		t.BatchSize = n
	case common.SettingBatchDelay:
		t.BatchDelay = time.Duration(n) * time.Second
	case common.SettingCycleDelay:
		t.CycleDelay = time.Duration(n) * time.Second
	case common.SettingConcurrency:
		t.Concurrency = n
	}
}

func (t Tunables) asSettings() map[string]string {
	return map[string]string{
		common.SettingBatchSize:   strconv.Itoa(t.BatchSize),
		common.SettingBatchDelay:  strconv.Itoa(int(t.BatchDelay / time.Second)),
		common.SettingCycleDelay:  strconv.Itoa(int(t.CycleDelay / time.Second)),
		common.SettingConcurrency: strconv.Itoa(t.Concurrency),
	}
}
