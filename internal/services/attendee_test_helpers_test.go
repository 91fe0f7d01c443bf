package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/charlesng35/gatepass/internal/database/testutil"
	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/realtime"
	"github.com/charlesng35/gatepass/internal/ticket"
)

func newTestAttendeeStore(t *testing.T) *AttendeeStore {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewAttendeeStore(db)
	require.NoError(t, err)
	return store
}

func seedAttendee(t *testing.T, store *AttendeeStore, email, code string, expiresAt time.Time) *models.Attendee {
	t.Helper()

	payload, err := ticket.BuildPayload(code, "Guest", email, expiresAt.Add(-DefaultCodeTTL))
	require.NoError(t, err)

	attendee, err := store.Insert(context.Background(), &models.Attendee{
		Name:        "Guest",
		Email:       email,
		Code:        code,
		CodePayload: datatypes.JSON(payload),
		ExpiresAt:   expiresAt,
	})
	require.NoError(t, err)
	return attendee
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

type dispatchCall struct {
	attendee models.Attendee
	png      []byte
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *recordingDispatcher) Dispatch(attendee models.Attendee, png []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{attendee: attendee, png: png})
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []realtime.Message
}

func (b *recordingBroadcaster) BroadcastStream(stream string, message realtime.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	message.Stream = stream
	b.messages = append(b.messages, message)
}

func (b *recordingBroadcaster) Messages() []realtime.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]realtime.Message(nil), b.messages...)
}
