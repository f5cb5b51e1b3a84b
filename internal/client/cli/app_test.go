package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/handlewatch/internal/client/client"
)

func TestRun_LoginThenREPL(t *testing.T) {
	silence(t)
	stubPassword(t, "key")
	fc := &fakeClient{}
	a, out := newTestApp(t, fc, "stats\nexit\n")

	a.Run(context.Background())

	assert.True(t, fc.closed)
	assert.Contains(t, fc.Calls(), "login")
	assert.Contains(t, fc.Calls(), "stats")
	assert.Contains(t, out.String(), "Welcome to handlewatch console")
}

func TestRun_LoginFailureStops(t *testing.T) {
	silence(t)
	stubPassword(t, "bad")
	fc := &fakeClient{loginErr: client.ErrUnauthorized}
	a, _ := newTestApp(t, fc, "stats\nexit\n")

	a.Run(context.Background())

	assert.True(t, fc.closed)
	assert.Equal(t, []string{"login"}, fc.Calls())
}

func TestRequestContext(t *testing.T) {
	a, _ := newTestApp(t, &fakeClient{}, "")

	ctx, cancel := a.requestContext(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), dl, 500*time.Millisecond)

	a.config.RequestTimeout = 0
	ctx2, cancel2 := a.requestContext(context.Background())
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.False(t, ok)
}
