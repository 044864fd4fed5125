package handoff_test

import (
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/handoff"
	"github.com/dmitrymomot/handoff/internal/intent"
	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/internal/recommend"
	"github.com/dmitrymomot/handoff/internal/registry"
	"github.com/dmitrymomot/handoff/internal/session"
	"github.com/dmitrymomot/handoff/internal/transfer"
)

const secret = "coordinator-test-secret"

type emitted struct {
	Handle string
	Event  string
	Data   any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(handle, event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Handle: handle, Event: event, Data: data})
	return nil
}

func (r *recorder) Events() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emitted(nil), r.events...)
}

type fixture struct {
	coord    *handoff.Coordinator
	sessions *session.MemoryStore
	tokens   *transfer.Service
	registry *registry.Registry
	mobile   *recorder
	kiosk    *recorder
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	store := kv.NewMemoryStore()
	t.Cleanup(store.Close)

	tokens, err := transfer.New(store, secret)
	require.NoError(t, err)
	reg, err := registry.New(store)
	require.NoError(t, err)

	sessions := session.NewMemoryStore()
	manager, err := session.NewManager(sessions)
	require.NoError(t, err)

	products := catalog.NewMemoryRepository(catalog.DefaultProducts()...)
	f := &fixture{
		sessions: sessions,
		tokens:   tokens,
		registry: reg,
		mobile:   &recorder{},
		kiosk:    &recorder{},
	}

	f.coord, err = handoff.New(handoff.Deps{
		Sessions:    manager,
		Tokens:      tokens,
		Registry:    reg,
		Parser:      intent.NewRuleParser(),
		Recommender: recommend.New(products),
		Catalog:     products,
		Mobile:      f.mobile,
		Kiosk:       f.kiosk,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) message(t *testing.T, sessionID, text string) handoff.MessageReply {
	t.Helper()
	reply, err := f.coord.HandleMessage(context.Background(), handoff.MessageInput{
		SessionID: sessionID,
		UserID:    "u-1",
		Text:      text,
	})
	require.NoError(t, err)
	return reply
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := handoff.New(handoff.Deps{})
	assert.ErrorIs(t, err, handoff.ErrMissingDeps)
}

func TestHandleMessageWeddingScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	reply := f.message(t, "s-1", "wedding in summer, budget $200")

	assert.Equal(t, "s-1", reply.SessionID)
	assert.Equal(t, session.SenderAI, reply.Message.Sender)
	assert.Equal(t, "wedding", reply.Intent.Occasion)
	assert.Equal(t, "summer", reply.Intent.Season)
	assert.InDelta(t, 200, reply.Intent.Budget, 0.001)
	assert.Len(t, reply.Recommendations, handoff.DefaultMobileLimit)

	stored, err := f.sessions.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, stored.HasTag("#Wedding"))
	assert.True(t, stored.HasTag("#SummerWear"))
	require.Len(t, stored.History, 2)
	assert.Equal(t, session.SenderUser, stored.History[0].Sender)
	assert.Equal(t, session.StatusActive, stored.Status)
	assert.Empty(t, stored.QRCode)
	assert.True(t, stored.QRExpiry.IsZero())
	assert.True(t, stored.TransferredAt.IsZero())
}

func TestHandleMessageAccumulatesIntent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	f.message(t, "s-1", "I need something for a wedding")
	reply := f.message(t, "s-1", "it's in the summer, under $150")

	assert.Equal(t, "wedding", reply.Intent.Occasion)
	assert.Equal(t, "summer", reply.Intent.Season)
	assert.InDelta(t, 150, reply.Intent.Budget, 0.001)

	stored, err := f.sessions.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Len(t, stored.History, 4)
}

func TestHandleMessageSeedsHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	reply, err := f.coord.HandleMessage(context.Background(), handoff.MessageInput{
		Text: "budget $300",
		History: []session.Message{
			{Text: "looking for a party outfit", Sender: session.SenderUser, Timestamp: time.Now()},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, reply.SessionID, reply.UserID)
	assert.Equal(t, "party", reply.Intent.Occasion)

	stored, err := f.sessions.Get(context.Background(), reply.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored.History, 3)
}

func TestHandleMessageValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	_, err := f.coord.HandleMessage(context.Background(), handoff.MessageInput{SessionID: "s-1", Text: "   "})
	assert.ErrorIs(t, err, session.ErrEmptyMessage)
	assert.Zero(t, f.sessions.Len())
}

func TestHandleMessageRegistersHandle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	_, err := f.coord.HandleMessage(context.Background(), handoff.MessageInput{
		SessionID: "s-1", UserID: "u-1", Text: "hello", Handle: "conn-1",
	})
	require.NoError(t, err)

	handle, err := f.registry.Lookup(context.Background(), registry.Mobile, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", handle)
}

func TestTransferRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "wedding in summer, budget $200")
	_, err := f.coord.Identify(ctx, registry.Mobile, "u-1", "mobile-conn")
	require.NoError(t, err)

	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.Payload{TokenID: ticket.TokenID, Signature: ticket.Signature}, ticket.Payload)
	assert.NotContains(t, ticket.QRCode, "s-1")

	raw, err := json.Marshal(ticket)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "sessionId")
	assert.JSONEq(t, `{"tokenId":"`+ticket.TokenID+`","signature":"`+ticket.Signature+`"}`, string(fields["payload"]))

	stored, err := f.sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.TokenID, stored.QRCode)
	assert.Equal(t, session.StatusActive, stored.Status)

	snap, err := f.coord.CompleteTransfer(ctx, handoff.ScanInput{
		TokenID: ticket.TokenID, Signature: ticket.Signature, KioskID: "kiosk-7",
	})
	require.NoError(t, err)
	assert.Equal(t, session.StatusTransferred, snap.Status)
	assert.Equal(t, "kiosk-7", snap.KioskID)
	assert.Len(t, snap.History, 2)
	assert.Contains(t, snap.Tags, "#Wedding")
	assert.NotEmpty(t, snap.Recommendations)
	assert.LessOrEqual(t, len(snap.Recommendations), handoff.DefaultKioskLimit)
	assert.Len(t, snap.Explanations, len(snap.Recommendations))

	stored, err = f.sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusTransferred, stored.Status)

	events := f.mobile.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "mobile-conn", events[0].Handle)
	assert.Equal(t, handoff.EventSessionTransferred, events[0].Event)

	_, err = f.coord.CompleteTransfer(ctx, handoff.ScanInput{TokenID: ticket.TokenID, Signature: ticket.Signature})
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestCompleteTransferWithoutMobileConnection(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "hello")

	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)
	_, err = f.coord.CompleteTransfer(ctx, handoff.ScanInput{TokenID: ticket.TokenID, Signature: ticket.Signature})
	require.NoError(t, err)
	assert.Empty(t, f.mobile.Events())
}

func TestCompleteTransferTamperedToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "hello")

	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)

	_, err = f.coord.CompleteTransfer(ctx, handoff.ScanInput{TokenID: ticket.TokenID, Signature: "forged"})
	assert.ErrorIs(t, err, transfer.ErrNotFound)
	_, err = f.coord.CompleteTransfer(ctx, handoff.ScanInput{TokenID: ticket.TokenID, Signature: ticket.Signature})
	assert.ErrorIs(t, err, transfer.ErrNotFound)

	stored, err := f.sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, stored.Status)
}

func TestCompleteTransferConcurrentScansRedeemOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "hello")
	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)

	const scans = 32
	errs := make(chan error, scans)
	var wg sync.WaitGroup
	for i := range scans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.CompleteTransfer(ctx, handoff.ScanInput{
				TokenID: ticket.TokenID, Signature: ticket.Signature, KioskID: fmt.Sprintf("kiosk-%d", i),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	redeemed := 0
	for err := range errs {
		if err == nil {
			redeemed++
			continue
		}
		assert.ErrorIs(t, err, transfer.ErrNotFound)
	}
	assert.Equal(t, 1, redeemed)

	_, err = f.coord.HandleMessage(ctx, handoff.MessageInput{SessionID: "s-1", Text: "still there?"})
	assert.ErrorIs(t, err, handoff.ErrSessionInactive)
	stored, err := f.sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusTransferred, stored.Status)
}

func TestCompleteTransferMissingSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()

	tok, err := f.tokens.Issue(ctx, "ghost")
	require.NoError(t, err)

	_, err = f.coord.CompleteTransfer(ctx, handoff.ScanInput{TokenID: tok.ID, Signature: tok.Signature})
	assert.ErrorIs(t, err, handoff.ErrSessionNotFound)

	_, err = f.tokens.Validate(ctx, tok.ID, tok.Signature)
	assert.ErrorIs(t, err, transfer.ErrNotFound, "token stays consumed")
}

func TestRequestTransferRequiresActiveSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()

	_, err := f.coord.RequestTransfer(ctx, "missing")
	assert.ErrorIs(t, err, handoff.ErrSessionNotFound)

	_, err = f.coord.RequestTransfer(ctx, "")
	assert.ErrorIs(t, err, session.ErrInvalidID)

	f.message(t, "s-1", "hello")
	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)
	_, err = f.coord.CompleteTransfer(ctx, handoff.ScanInput{TokenID: ticket.TokenID, Signature: ticket.Signature})
	require.NoError(t, err)

	_, err = f.coord.RequestTransfer(ctx, "s-1")
	assert.ErrorIs(t, err, handoff.ErrSessionInactive)

	_, err = f.coord.HandleMessage(ctx, handoff.MessageInput{SessionID: "s-1", Text: "still there?"})
	assert.ErrorIs(t, err, handoff.ErrSessionInactive)
}

func TestRequestTransferWithoutSecret(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	f.message(t, "s-1", "hello")

	_, err := f.coord.RequestTransfer(context.Background(), "s-1")
	assert.ErrorIs(t, err, transfer.ErrMissingSecret)

	stored, err := f.sessions.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Empty(t, stored.QRCode)
}

func TestRequestAssociate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "hello")
	before, err := f.sessions.Get(ctx, "s-1")
	require.NoError(t, err)

	req, err := f.coord.RequestAssociate(ctx, handoff.AssociateInput{SessionID: "s-1", ProductID: "p-001", KioskID: "kiosk-7"})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "p-001", req.Product.ID)

	_, err = f.coord.RequestAssociate(ctx, handoff.AssociateInput{SessionID: "s-1", ProductID: "nope"})
	assert.ErrorIs(t, err, handoff.ErrProductNotFound)

	_, err = f.coord.RequestAssociate(ctx, handoff.AssociateInput{SessionID: "missing", ProductID: "p-001"})
	assert.ErrorIs(t, err, handoff.ErrSessionNotFound)

	_, err = f.coord.RequestAssociate(ctx, handoff.AssociateInput{SessionID: "s-1"})
	assert.ErrorIs(t, err, handoff.ErrInvalidInput)

	after, err := f.sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIdentifyAndDisconnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()

	_, err := f.coord.Identify(ctx, registry.Kiosk, "kiosk-7", "conn-a")
	require.NoError(t, err)
	_, err = f.coord.Identify(ctx, registry.Kiosk, "kiosk-7", "conn-b")
	require.NoError(t, err)

	identity, err := f.coord.Disconnect(ctx, registry.Kiosk, "conn-a")
	require.NoError(t, err)
	assert.Empty(t, identity, "stale handle holds no registration")

	handle, err := f.registry.Lookup(ctx, registry.Kiosk, "kiosk-7")
	require.NoError(t, err)
	assert.Equal(t, "conn-b", handle)

	identity, err = f.coord.Disconnect(ctx, registry.Kiosk, "conn-b")
	require.NoError(t, err)
	assert.Equal(t, "kiosk-7", identity)

	_, err = f.registry.Lookup(ctx, registry.Kiosk, "kiosk-7")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	_, err = f.coord.Identify(ctx, registry.Channel("tv"), "x", "conn-c")
	assert.ErrorIs(t, err, registry.ErrInvalidChannel)
}

func TestDeleteSessionBurnsToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "hello")

	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)
	require.NoError(t, f.coord.DeleteSession(ctx, "s-1"))

	_, err = f.coord.GetSession(ctx, "s-1")
	assert.ErrorIs(t, err, handoff.ErrSessionNotFound)
	existed, err := f.coord.ExpireToken(ctx, ticket.TokenID)
	require.NoError(t, err)
	assert.False(t, existed)

	assert.ErrorIs(t, f.coord.DeleteSession(ctx, "s-1"), handoff.ErrSessionNotFound)
}

func TestPublicErrorHidesTokenFailureCause(t *testing.T) {
	t.Parallel()

	notFound := handoff.PublicError(transfer.ErrNotFound)
	assert.Equal(t, 404, notFound.Status)
	assert.Equal(t, "invalid or expired token", notFound.Message)

	tests := []struct {
		err    error
		status int
	}{
		{session.ErrEmptyMessage, 400},
		{handoff.ErrSessionNotFound, 404},
		{handoff.ErrProductNotFound, 404},
		{handoff.ErrSessionInactive, 409},
		{transfer.ErrMissingSecret, 503},
		{errors.Join(transfer.ErrStoreUnavailable, errors.New("dial tcp: refused")), 503},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		pub := handoff.PublicError(tt.err)
		assert.Equal(t, tt.status, pub.Status, tt.err.Error())
		assert.NotContains(t, pub.Message, "dial tcp")
	}
}

func TestValidateTokenPushesToConnectedKiosk(t *testing.T) {
	t.Parallel()

	f := newFixture(t, secret)
	ctx := context.Background()
	f.message(t, "s-1", "hello")
	_, err := f.coord.Identify(ctx, registry.Kiosk, "kiosk-7", "kiosk-conn")
	require.NoError(t, err)

	ticket, err := f.coord.RequestTransfer(ctx, "s-1")
	require.NoError(t, err)
	snap, err := f.coord.ValidateToken(ctx, handoff.ScanInput{
		TokenID: ticket.TokenID, Signature: ticket.Signature, KioskID: "kiosk-7",
	})
	require.NoError(t, err)

	events := f.kiosk.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "kiosk-conn", events[0].Handle)
	assert.Equal(t, handoff.EventSessionData, events[0].Event)
	assert.Equal(t, snap, events[0].Data)
}
