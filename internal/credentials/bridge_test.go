package credentials

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

type recordingPrompter struct {
	mu      sync.Mutex
	prompts []prompt
	notify  chan Kind
}

type prompt struct {
	operator int64
	kind     Kind
}

func newRecordingPrompter() *recordingPrompter {
	return &recordingPrompter{notify: make(chan Kind, 8)}
}

func (p *recordingPrompter) Prompt(_ context.Context, operatorID int64, kind Kind) error {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt{operator: operatorID, kind: kind})
	p.mu.Unlock()
	p.notify <- kind
	return nil
}

func (p *recordingPrompter) wait(t *testing.T) Kind {
	t.Helper()
	select {
	case k := <-p.notify:
		return k
	case <-time.After(2 * time.Second):
		t.Fatal("no prompt")
		return ""
	}
}

type result struct {
	value string
	err   error
}

func request(b *Bridge, ctx context.Context, kind Kind) <-chan result {
	out := make(chan result, 1)
	go func() {
		v, err := b.Request(ctx, kind)
		out <- result{value: v, err: err}
	}()
	return out
}

func TestBridge_RequestSupply(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 7, logging.Nop())

	res := request(b, context.Background(), KindPhone)
	assert.Equal(t, KindPhone, p.wait(t))
	assert.True(t, b.Waiting(KindPhone))
	assert.False(t, b.Waiting(KindCode))

	require.True(t, b.Supply(7, KindPhone, "+15550001111"))
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "+15550001111", r.value)
	assert.False(t, b.Waiting(KindPhone))
	assert.Equal(t, []prompt{{operator: 7, kind: KindPhone}}, p.prompts)
}

func TestBridge_SupplyIsSingleShot(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 0, logging.Nop())

	res := request(b, context.Background(), KindCode)
	p.wait(t)

	assert.True(t, b.Supply(1, KindCode, "11111"))
	assert.False(t, b.Supply(1, KindCode, "22222"))

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "11111", r.value)
}

func TestBridge_SupplyWithoutRequest(t *testing.T) {
	b := NewBridge(nil, 0, logging.Nop())
	assert.False(t, b.Supply(1, KindPassword, "secret"))
	_, ok := b.Route(1, "secret")
	assert.False(t, ok)
}

func TestBridge_SupplyFromOtherOperatorIgnored(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 10, logging.Nop())

	res := request(b, context.Background(), KindPassword)
	p.wait(t)

	assert.False(t, b.Supply(11, KindPassword, "intruder"))
	assert.True(t, b.Waiting(KindPassword))

	b.SetSource(11)
	assert.Equal(t, int64(11), b.Source())
	assert.True(t, b.Supply(11, KindPassword, "hunter2"))
	assert.Equal(t, "hunter2", (<-res).value)
}

func TestBridge_DuplicateRequestRejected(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 0, logging.Nop())

	res := request(b, context.Background(), KindCode)
	p.wait(t)

	_, err := b.Request(context.Background(), KindCode)
	require.ErrorIs(t, err, ErrSlotPending)

	b.Supply(0, KindCode, "12345")
	assert.Equal(t, "12345", (<-res).value)
}

func TestBridge_RequestCancelled(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 0, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	res := request(b, ctx, KindPhone)
	p.wait(t)
	cancel()

	r := <-res
	require.ErrorIs(t, r.err, context.Canceled)
	assert.False(t, b.Waiting(KindPhone))
	assert.False(t, b.Supply(0, KindPhone, "late"))
}

func TestBridge_Abandon(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 0, logging.Nop())

	res := request(b, context.Background(), KindCode)
	p.wait(t)
	b.Abandon()

	require.ErrorIs(t, (<-res).err, ErrAbandoned)
	assert.False(t, b.Waiting(KindCode))
}

func TestBridge_RouteStripsCodeSpaces(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 3, logging.Nop())

	res := request(b, context.Background(), KindCode)
	p.wait(t)

	kind, ok := b.Route(3, " 12 345 ")
	assert.True(t, ok)
	assert.Equal(t, KindCode, kind)
	assert.Equal(t, "12345", (<-res).value)
}

func TestBridge_LoginOrder(t *testing.T) {
	p := newRecordingPrompter()
	b := NewBridge(p, 0, logging.Nop())

	done := make(chan []string, 1)
	go func() {
		ctx := context.Background()
		phone, _ := b.Phone(ctx)
		code, _ := b.Code(ctx)
		pass, _ := b.Password(ctx)
		done <- []string{phone, code, pass}
	}()

	for _, answer := range []string{"+15550002222", "54321", "pw"} {
		kind := p.wait(t)
		got, ok := b.Route(0, answer)
		require.True(t, ok)
		require.Equal(t, kind, got)
	}
	assert.Equal(t, []string{"+15550002222", "54321", "pw"}, <-done)
}

func TestBridge_InProgressFlag(t *testing.T) {
	b := NewBridge(nil, 0, logging.Nop())

	require.True(t, b.TryBegin())
	assert.True(t, b.InProgress())
	assert.False(t, b.TryBegin())

	b.End()
	assert.False(t, b.InProgress())
	assert.True(t, b.TryBegin())
}

// supplyingPrompter answers every prompt itself after cancelling the
// requester's context, so the answer and the cancellation race.
type supplyingPrompter struct {
	b      *Bridge
	cancel context.CancelFunc
	value  string
	ok     bool
}

func (p *supplyingPrompter) Prompt(_ context.Context, operatorID int64, kind Kind) error {
	p.cancel()
	p.ok = p.b.Supply(operatorID, kind, p.value)
	return nil
}

func TestRequest_SuppliedValueWinsOverCancel(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		p := &supplyingPrompter{cancel: cancel, value: "12345"}
		b := NewBridge(p, 0, logging.Nop())
		p.b = b

		v, err := b.Request(ctx, KindCode)

		require.True(t, p.ok)
		require.NoError(t, err)
		assert.Equal(t, "12345", v)
		assert.False(t, b.Waiting(KindCode))
	}
}

func TestRequest_CancelWithoutAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBridge(promptFunc(func() { cancel() }), 0, logging.Nop())

	_, err := b.Request(ctx, KindPhone)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Waiting(KindPhone))
	assert.False(t, b.Supply(0, KindPhone, "+1"))
}

type promptFunc func()

func (f promptFunc) Prompt(context.Context, int64, Kind) error {
	f()
	return nil
}
