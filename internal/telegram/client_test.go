package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/directory"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

func TestMapResolveError(t *testing.T) {
	require.NoError(t, mapResolveError(nil))

	err := mapResolveError(fmt.Errorf("rpc: %w", tgerr.New(420, "FLOOD_WAIT_30")))
	te, ok := directory.AsThrottle(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, te.Wait)

	assert.ErrorIs(t, mapResolveError(tgerr.New(400, "USERNAME_NOT_OCCUPIED")), directory.ErrNotOccupied)
	assert.ErrorIs(t, mapResolveError(tgerr.New(400, "USERNAME_INVALID")), directory.ErrInvalidHandle)
	assert.ErrorIs(t, mapResolveError(tgerr.New(401, "AUTH_KEY_UNREGISTERED")), common.ErrNotAuthorized)

	var tr *directory.TransportError
	require.ErrorAs(t, mapResolveError(errors.New("i/o timeout")), &tr)
}

type staticCreds struct{}

func (staticCreds) Phone(context.Context) (string, error)    { return "+15550001111", nil }
func (staticCreds) Code(context.Context) (string, error)     { return "12345", nil }
func (staticCreds) Password(context.Context) (string, error) { return "pw", nil }

func TestAuthenticator(t *testing.T) {
	a := authenticator{creds: staticCreds{}}
	ctx := context.Background()

	phone, err := a.Phone(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", phone)

	code, err := a.Code(ctx, &tg.AuthSentCode{})
	require.NoError(t, err)
	assert.Equal(t, "12345", code)

	pw, err := a.Password(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)

	assert.Error(t, a.AcceptTermsOfService(ctx, tg.HelpTermsOfService{}))
	_, err = a.SignUp(ctx)
	assert.Error(t, err)
}

func TestNew_RequiresAppCredentials(t *testing.T) {
	_, err := New(Config{}, logging.Nop())
	require.Error(t, err)

	c, err := New(Config{AppID: 1, AppHash: "hash", SessionPath: t.TempDir() + "/s/watch.session"}, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
