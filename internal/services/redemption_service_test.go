package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatepass/internal/auditctx"
	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/realtime"
)

func newTestRedemption(t *testing.T, now time.Time, opts ...RedemptionOption) (*RedemptionService, *AttendeeStore) {
	t.Helper()
	store := newTestAttendeeStore(t)
	svc, err := NewRedemptionService(store, append([]RedemptionOption{WithRedemptionClock(fixedClock(now))}, opts...)...)
	require.NoError(t, err)
	return svc, store
}

func TestNewRedemptionServiceRequiresStore(t *testing.T) {
	_, err := NewRedemptionService(nil)
	require.Error(t, err)
}

func TestRedeemFreshCode(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "alice@example.com", "code-1", now.Add(time.Hour))

	result, err := svc.Redeem(context.Background(), "  code-1 ")
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, result.Status)
	require.Equal(t, "code-1", result.Code)
	require.NotNil(t, result.UsedAt)
	require.True(t, now.Equal(*result.UsedAt))
	require.Equal(t, "alice@example.com", result.Attendee.Email)

	stored, err := store.FindByCode(context.Background(), "code-1")
	require.NoError(t, err)
	require.True(t, stored.Used)
	require.NotNil(t, stored.UsedAt)
}

func TestRedeemTwiceReportsUsed(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "alice@example.com", "code-1", now.Add(time.Hour))

	first, err := svc.Redeem(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, first.Status)

	second, err := svc.Redeem(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, StatusUsed, second.Status)
	require.NotNil(t, second.UsedAt)
	require.True(t, first.UsedAt.Equal(*second.UsedAt))
	require.Equal(t, "QR code has already been used", second.Message())
}

func TestRedeemExpiredCode(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "alice@example.com", "code-1", now.Add(-time.Second))

	result, err := svc.Redeem(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, result.Status)
	require.Contains(t, result.Message(), "May 1, 2025")

	stored, err := store.FindByCode(context.Background(), "code-1")
	require.NoError(t, err)
	require.False(t, stored.Used)
	require.Nil(t, stored.UsedAt)
}

func TestRedeemAtExactExpiryIsAllowed(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "alice@example.com", "code-1", now)

	result, err := svc.Redeem(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, result.Status)
}

func TestRedeemUsedTakesPrecedenceOverExpired(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "alice@example.com", "code-1", now.Add(-time.Hour))

	_, err := store.MarkUsed(context.Background(), "code-1", now.Add(-2*time.Hour))
	require.NoError(t, err)

	result, err := svc.Redeem(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, StatusUsed, result.Status)
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _ := newTestRedemption(t, time.Now())

	result, err := svc.Redeem(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
	require.Nil(t, result.Attendee)
	require.Equal(t, "QR code not found", result.Message())
}

func TestRedeemAcceptsJSONPayload(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	attendee := seedAttendee(t, store, "alice@example.com", "code-1", now.Add(time.Hour))

	result, err := svc.Redeem(context.Background(), string(attendee.CodePayload))
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, result.Status)

	result, err = svc.Redeem(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, StatusUsed, result.Status)
}

func TestRedeemMalformedJSONFallsThrough(t *testing.T) {
	svc, _ := newTestRedemption(t, time.Now())

	result, err := svc.Redeem(context.Background(), `{"id":"abc"`)
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
	require.Equal(t, `{"id":"abc"`, result.Code)
}

func TestRedeemRequiresCode(t *testing.T) {
	svc, _ := newTestRedemption(t, time.Now())

	_, err := svc.Redeem(context.Background(), "   ")
	require.ErrorIs(t, err, ErrCodeRequired)

	_, err = svc.Inspect(context.Background(), "")
	require.ErrorIs(t, err, ErrCodeRequired)
}

func TestRedeemConcurrentScansConsumeOnce(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "alice@example.com", "code-1", now.Add(time.Hour))

	const scanners = 16
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		statuses = make(chan RedemptionStatus, scanners)
		errs     = make(chan error, scanners)
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := svc.Redeem(context.Background(), "code-1")
			if err != nil {
				errs <- err
				return
			}
			statuses <- result.Status
		}()
	}
	close(start)
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	counts := map[RedemptionStatus]int{}
	for status := range statuses {
		counts[status]++
	}
	require.Equal(t, 1, counts[StatusRedeemed])
	require.Equal(t, scanners-1, counts[StatusUsed])
}

func TestInspectDoesNotMutate(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	svc, store := newTestRedemption(t, now)
	seedAttendee(t, store, "valid@example.com", "valid", now.Add(time.Hour))
	seedAttendee(t, store, "expired@example.com", "expired", now.Add(-time.Hour))

	for i := 0; i < 2; i++ {
		result, err := svc.Inspect(context.Background(), "valid")
		require.NoError(t, err)
		require.Equal(t, StatusValid, result.Status)
	}

	result, err := svc.Inspect(context.Background(), "expired")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, result.Status)

	result, err = svc.Inspect(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Used)

	redeemed, err := svc.Redeem(context.Background(), "valid")
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, redeemed.Status)

	result, err = svc.Inspect(context.Background(), "valid")
	require.NoError(t, err)
	require.Equal(t, StatusUsed, result.Status)
}

func TestRedeemRecordsScanAndBroadcasts(t *testing.T) {
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	store := newTestAttendeeStore(t)
	scans, err := NewScanLogService(store.db)
	require.NoError(t, err)
	broadcaster := &recordingBroadcaster{}

	svc, err := NewRedemptionService(store,
		WithRedemptionClock(fixedClock(now)),
		WithScanRecorder(scans),
		WithRedemptionBroadcaster(broadcaster),
	)
	require.NoError(t, err)
	attendee := seedAttendee(t, store, "alice@example.com", "code-1", now.Add(time.Hour))

	ctx := auditctx.WithOperator(context.Background(), auditctx.Operator{Username: "gate-1", IPAddress: "10.1.1.1"})
	_, err = svc.Redeem(ctx, "code-1")
	require.NoError(t, err)
	_, err = svc.Inspect(ctx, "code-1")
	require.NoError(t, err)

	logs, total, err := scans.List(context.Background(), ScanListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	for _, entry := range logs {
		require.Equal(t, "gate-1", entry.Operator)
		require.Equal(t, "10.1.1.1", entry.IPAddress)
		require.NotNil(t, entry.AttendeeID)
		require.Equal(t, attendee.ID, *entry.AttendeeID)
	}

	messages := broadcaster.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, realtime.StreamScans, messages[0].Stream)
	data := messages[0].Data.(map[string]any)
	require.Equal(t, StatusRedeemed, data["status"])
	require.Equal(t, "Guest", data["name"])
}

func TestRedeemSurfacesStorageFailure(t *testing.T) {
	svc, store := newTestRedemption(t, time.Now())
	require.NoError(t, store.db.Migrator().DropTable(&models.Attendee{}))

	_, err := svc.Redeem(context.Background(), "code-1")
	require.ErrorIs(t, err, ErrStorageUnavailable)
}
