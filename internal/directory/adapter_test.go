package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/handlewatch/internal/handles"
)

func TestAdapter_Resolve(t *testing.T) {
	netErr := errors.New("connection reset")

	tests := []struct {
		name       string
		resolveErr error
		want       handles.Status
		check      func(t *testing.T, err error)
	}{
		{name: "occupied", want: handles.StatusOccupied},
		{name: "not occupied", resolveErr: ErrNotOccupied, want: handles.StatusFree},
		{name: "invalid reads as free", resolveErr: fmt.Errorf("rpc: %w", ErrInvalidHandle), want: handles.StatusFree},
		{
			name:       "throttle passes through",
			resolveErr: &ThrottleError{Wait: 42 * time.Second},
			want:       handles.StatusError,
			check: func(t *testing.T, err error) {
				te, ok := AsThrottle(err)
				require.True(t, ok)
				assert.Equal(t, 42*time.Second, te.Wait)
			},
		},
		{
			name:       "other failure becomes transport error",
			resolveErr: netErr,
			want:       handles.StatusError,
			check: func(t *testing.T, err error) {
				var tr *TransportError
				require.ErrorAs(t, err, &tr)
				assert.ErrorIs(t, err, netErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			a := NewAdapter(ResolverFunc(func(_ context.Context, name string) error {
				seen = name
				return tt.resolveErr
			}))

			got, err := a.Resolve(context.Background(), "@Alice")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "alice", seen)
			if tt.check != nil {
				tt.check(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "throttled for 1m0s", (&ThrottleError{Wait: time.Minute}).Error())
	assert.Equal(t, "directory transport: eof", (&TransportError{Err: errors.New("eof")}).Error())
}
