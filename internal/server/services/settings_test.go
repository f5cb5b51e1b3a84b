package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/handlewatch/internal/common"
)

func TestParseSetting(t *testing.T) {
	tests := []struct {
		key, value string
		want       int
		ok         bool
	}{
		{common.SettingBatchSize, "10", 10, true},
		{common.SettingBatchSize, "201", 0, false},
		{common.SettingBatchDelay, "60", 60, true},
		{common.SettingBatchDelay, "0", 0, false},
		{common.SettingCycleDelay, "3600", 3600, true},
		{common.SettingConcurrency, "1.5", 0, false},
		{"colour", "1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := ParseSetting(tt.key, tt.value)
			if !tt.ok {
				assert.ErrorIs(t, err, common.ErrInvalidSetting)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
