package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/channels"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/guardians"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/template"
)

type fakeDirectory struct {
	guardiansFunc func(ctx context.Context, wardID string) ([]guardians.Guardian, error)
}

func (f *fakeDirectory) GuardiansForWard(ctx context.Context, wardID string) ([]guardians.Guardian, error) {
	if f.guardiansFunc != nil {
		return f.guardiansFunc(ctx, wardID)
	}
	return nil, nil
}

type fakeChannel struct {
	typ         string
	reachesFunc func(g guardians.Guardian) bool
	sendFunc    func(ctx context.Context, g guardians.Guardian, msg channels.Message) error

	mu    sync.Mutex
	sends []string // guardian IDs
}

func (f *fakeChannel) Type() string { return f.typ }

func (f *fakeChannel) Reaches(g guardians.Guardian) bool {
	if f.reachesFunc != nil {
		return f.reachesFunc(g)
	}
	return true
}

func (f *fakeChannel) Content(tpl template.Template) string { return tpl.Text }

func (f *fakeChannel) Send(ctx context.Context, g guardians.Guardian, msg channels.Message) error {
	f.mu.Lock()
	f.sends = append(f.sends, g.ID)
	f.mu.Unlock()
	if f.sendFunc != nil {
		return f.sendFunc(ctx, g, msg)
	}
	return nil
}

func (f *fakeChannel) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type recordingRepo struct {
	createFunc func(ctx context.Context, n *repository.Notification) error

	mu   sync.Mutex
	rows []*repository.Notification
}

func (r *recordingRepo) Create(ctx context.Context, n *repository.Notification) error {
	r.mu.Lock()
	r.rows = append(r.rows, n)
	r.mu.Unlock()
	if r.createFunc != nil {
		return r.createFunc(ctx, n)
	}
	return nil
}

func (r *recordingRepo) ListByAlert(ctx context.Context, alertID string) ([]*repository.Notification, error) {
	return nil, nil
}

func (r *recordingRepo) Close() error { return nil }

func (r *recordingRepo) byChannelStatus() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]string{}
	for _, n := range r.rows {
		out[n.Channel] = n.Status
	}
	return out
}

func singleGuardianDirectory() *fakeDirectory {
	return &fakeDirectory{
		guardiansFunc: func(ctx context.Context, wardID string) ([]guardians.Guardian, error) {
			return []guardians.Guardian{{
				ID:    "guardian-1",
				Email: "g@example.com",
				Phone: "+15550001111",
				Preferences: guardians.Preferences{
					Email: true, SMS: true,
				},
			}}, nil
		},
	}
}

func alertCreatedEnvelope(t *testing.T) *events.Envelope {
	t.Helper()
	env, err := events.New(events.SubjectAlertCreated, events.SourceAlert, "corr-1", events.AlertCreatedData{
		AlertID:     "alert-1",
		Title:       "High fall risk",
		Description: "Check for fall event",
		AlertType:   "high_fall_risk",
		Severity:    "high",
		Status:      "active",
		TriggeredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	env.WardID = "ward-1"
	return env
}

func TestHandleAlertCreated_FailedChannelDoesNotBlockOthers(t *testing.T) {
	email := &fakeChannel{typ: "email", sendFunc: func(ctx context.Context, g guardians.Guardian, msg channels.Message) error {
		return errors.New("smtp gateway down")
	}}
	sms := &fakeChannel{typ: "sms"}
	repo := &recordingRepo{}

	svc := New(singleGuardianDirectory(), []channels.Channel{email, sms}, repo, logging.Default(), 4)

	err := svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t))

	require.NoError(t, err, "fan-out failures never reach the bus")
	assert.Equal(t, 1, email.sendCount())
	assert.Equal(t, 1, sms.sendCount())

	statuses := repo.byChannelStatus()
	assert.Equal(t, repository.StatusFailed, statuses["email"])
	assert.Equal(t, repository.StatusSent, statuses["sms"])
	require.Len(t, repo.rows, 2)
}

func TestHandleAlertCreated_FailedRowCarriesErrorMessage(t *testing.T) {
	email := &fakeChannel{typ: "email", sendFunc: func(ctx context.Context, g guardians.Guardian, msg channels.Message) error {
		return errors.New("smtp gateway down")
	}}
	repo := &recordingRepo{}

	svc := New(singleGuardianDirectory(), []channels.Channel{email}, repo, logging.Default(), 4)
	require.NoError(t, svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t)))

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, "guardian-1", row.GuardianID)
	assert.Equal(t, "alert-1", row.AlertID)
	assert.Equal(t, "ward-1", row.WardID)
	assert.Contains(t, row.ErrorMessage, "smtp gateway down")
	assert.NotEmpty(t, row.Content)
}

func TestHandleAlertCreated_SentRowCarriesSentAtAndMetadata(t *testing.T) {
	email := &fakeChannel{typ: "email"}
	sms := &fakeChannel{typ: "sms", sendFunc: func(ctx context.Context, g guardians.Guardian, msg channels.Message) error {
		return errors.New("gateway timeout")
	}}
	repo := &recordingRepo{}

	svc := New(singleGuardianDirectory(), []channels.Channel{email, sms}, repo, logging.Default(), 4)
	ctx := logging.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, svc.HandleAlertCreated(ctx, alertCreatedEnvelope(t)))

	require.Len(t, repo.rows, 2)
	for _, row := range repo.rows {
		assert.Equal(t, "high", row.Metadata["severity"])
		assert.Equal(t, "corr-1", row.Metadata["correlationId"])
		switch row.Channel {
		case "email":
			require.NotNil(t, row.SentAt, "successful delivery records its send time")
			assert.False(t, row.SentAt.Before(row.CreatedAt))
		case "sms":
			assert.Nil(t, row.SentAt, "failed delivery has no send time")
		}
	}
}

func TestHandleAlertCreated_GuardianLookupFailureIsQuiet(t *testing.T) {
	dir := &fakeDirectory{
		guardiansFunc: func(ctx context.Context, wardID string) ([]guardians.Guardian, error) {
			return nil, errors.New("user service unreachable")
		},
	}
	email := &fakeChannel{typ: "email"}
	repo := &recordingRepo{}

	svc := New(dir, []channels.Channel{email}, repo, logging.Default(), 4)
	err := svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t))

	require.NoError(t, err)
	assert.Zero(t, email.sendCount())
	assert.Empty(t, repo.rows)
}

func TestHandleAlertCreated_SkipsUnreachableChannels(t *testing.T) {
	email := &fakeChannel{typ: "email", reachesFunc: func(g guardians.Guardian) bool { return false }}
	sms := &fakeChannel{typ: "sms"}
	repo := &recordingRepo{}

	svc := New(singleGuardianDirectory(), []channels.Channel{email, sms}, repo, logging.Default(), 4)
	require.NoError(t, svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t)))

	assert.Zero(t, email.sendCount())
	assert.Equal(t, 1, sms.sendCount())
	require.Len(t, repo.rows, 1)
}

func TestHandleAlertCreated_OneRowPerGuardianChannelPair(t *testing.T) {
	dir := &fakeDirectory{
		guardiansFunc: func(ctx context.Context, wardID string) ([]guardians.Guardian, error) {
			return []guardians.Guardian{
				{ID: "guardian-1"},
				{ID: "guardian-2"},
				{ID: "guardian-3"},
			}, nil
		},
	}
	email := &fakeChannel{typ: "email"}
	sms := &fakeChannel{typ: "sms"}
	repo := &recordingRepo{}

	svc := New(dir, []channels.Channel{email, sms}, repo, logging.Default(), 4)
	require.NoError(t, svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t)))

	assert.Equal(t, 3, email.sendCount())
	assert.Equal(t, 3, sms.sendCount())
	assert.Len(t, repo.rows, 6)
}

func TestHandleAlertCreated_LargeRosterDeliversToEveryReachableGuardian(t *testing.T) {
	faker := gofakeit.New(7)
	roster := make([]guardians.Guardian, 25)
	for i := range roster {
		roster[i] = guardians.Guardian{
			ID:    faker.UUID(),
			Email: faker.Email(),
			Phone: faker.Phone(),
			Preferences: guardians.Preferences{
				Email: true,
				SMS:   i%2 == 0,
			},
		}
	}

	dir := &fakeDirectory{
		guardiansFunc: func(ctx context.Context, wardID string) ([]guardians.Guardian, error) {
			return roster, nil
		},
	}
	email := &fakeChannel{typ: "email", reachesFunc: func(g guardians.Guardian) bool { return g.Preferences.Email }}
	sms := &fakeChannel{typ: "sms", reachesFunc: func(g guardians.Guardian) bool { return g.Preferences.SMS }}
	repo := &recordingRepo{}

	svc := New(dir, []channels.Channel{email, sms}, repo, logging.Default(), 4)
	require.NoError(t, svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t)))

	assert.Equal(t, 25, email.sendCount())
	assert.Equal(t, 13, sms.sendCount())
	assert.Len(t, repo.rows, 38)
}

func TestHandleAlertCreated_FanOutIsBounded(t *testing.T) {
	var inFlight, peak atomic.Int64
	slow := func(ctx context.Context, g guardians.Guardian, msg channels.Message) error {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	dir := &fakeDirectory{
		guardiansFunc: func(ctx context.Context, wardID string) ([]guardians.Guardian, error) {
			gs := make([]guardians.Guardian, 8)
			for i := range gs {
				gs[i] = guardians.Guardian{ID: "guardian"}
			}
			return gs, nil
		},
	}
	email := &fakeChannel{typ: "email", sendFunc: slow}
	repo := &recordingRepo{}

	svc := New(dir, []channels.Channel{email}, repo, logging.Default(), 2)
	require.NoError(t, svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t)))

	assert.Equal(t, 8, email.sendCount())
	assert.LessOrEqual(t, peak.Load(), int64(2), "concurrency stays under the fan-out limit")
}

func TestHandleAlertCreated_AuditFailureIsSwallowed(t *testing.T) {
	email := &fakeChannel{typ: "email"}
	repo := &recordingRepo{
		createFunc: func(ctx context.Context, n *repository.Notification) error {
			return errors.New("database down")
		},
	}

	svc := New(singleGuardianDirectory(), []channels.Channel{email}, repo, logging.Default(), 4)
	err := svc.HandleAlertCreated(context.Background(), alertCreatedEnvelope(t))

	require.NoError(t, err)
	assert.Equal(t, 1, email.sendCount())
}

func TestHandleAlertCreated_UndecodablePayloadDropped(t *testing.T) {
	email := &fakeChannel{typ: "email"}
	repo := &recordingRepo{}
	svc := New(singleGuardianDirectory(), []channels.Channel{email}, repo, logging.Default(), 4)

	env := alertCreatedEnvelope(t)
	env.Data = json.RawMessage(`"not an object"`)

	err := svc.HandleAlertCreated(context.Background(), env)

	require.NoError(t, err)
	assert.Zero(t, email.sendCount())
}
