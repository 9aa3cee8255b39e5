package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/jobs"
)

type mockNotificationStore struct {
	mu            sync.Mutex
	notifications []models.Notification
	createErr     error
	countCalls    int
}

func (m *mockNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	notification.ID = fmt.Sprintf("not-%d", len(m.notifications)+1)
	notification.CreatedAt = time.Now()
	m.notifications = append(m.notifications, *notification)
	return nil
}

func (m *mockNotificationStore) ListByRecipient(ctx context.Context, recipient string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Notification
	for _, n := range m.notifications {
		if n.Recipient == recipient {
			list = append(list, n)
		}
	}
	return list, nil
}

func (m *mockNotificationStore) CountUnread(ctx context.Context, recipient string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	count := 0
	for _, n := range m.notifications {
		if n.Recipient == recipient && !n.Viewed {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationStore) MarkViewed(ctx context.Context, id, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.Recipient == recipient {
			m.notifications[i].Viewed = true
			return nil
		}
	}
	return sql.ErrNoRows
}

// recordingSender captures deliveries and signals each one so tests can
// wait without sleeping.
type recordingSender struct {
	mu        sync.Mutex
	delivered []string
	failures  int
	signal    chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{signal: make(chan struct{}, 16)}
}

func (r *recordingSender) Send(recipient, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		r.signal <- struct{}{}
		return errors.New("smtp unavailable")
	}
	r.delivered = append(r.delivered, recipient)
	r.signal <- struct{}{}
	return nil
}

func (r *recordingSender) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
}

func notificationFixture(t *testing.T, store *mockNotificationStore, sender *recordingSender) *NotificationService {
	t.Helper()
	svc := NewNotificationService(store, sender, nil, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond}, time.Minute, nil, zap.NewNop())
	svc.StartWorkers(context.Background())
	t.Cleanup(svc.StopWorkers)
	return svc
}

func TestNotificationServiceDispatch(t *testing.T) {
	store := &mockNotificationStore{}
	sender := newRecordingSender()
	svc := notificationFixture(t, store, sender)

	svc.Dispatch(context.Background(), "student@uni.edu", "Case approved", "Your case was approved.")
	sender.wait(t, 1)

	require.Len(t, store.notifications, 1)
	assert.Equal(t, "student@uni.edu", store.notifications[0].Recipient)
	assert.False(t, store.notifications[0].Viewed)
	assert.Equal(t, []string{"student@uni.edu"}, sender.delivered)
}

func TestNotificationServiceDispatchRetriesDelivery(t *testing.T) {
	store := &mockNotificationStore{}
	sender := newRecordingSender()
	sender.failures = 1
	svc := notificationFixture(t, store, sender)

	svc.Dispatch(context.Background(), "donor@corp.com", "Payment recorded", "Payment 1 of 3 received.")
	sender.wait(t, 2)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []string{"donor@corp.com"}, sender.delivered)
}

func TestNotificationServiceDispatchSwallowsStoreError(t *testing.T) {
	store := &mockNotificationStore{createErr: errors.New("db down")}
	sender := newRecordingSender()
	svc := notificationFixture(t, store, sender)

	svc.Dispatch(context.Background(), "student@uni.edu", "Case approved", "body")

	select {
	case <-sender.signal:
		t.Fatal("nothing should be delivered when persistence fails")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotificationServiceDispatchIgnoresEmptyRecipient(t *testing.T) {
	store := &mockNotificationStore{}
	svc := notificationFixture(t, store, newRecordingSender())

	svc.Dispatch(context.Background(), "", "subject", "body")

	assert.Empty(t, store.notifications)
}

func TestNotificationServiceListForRecipient(t *testing.T) {
	store := &mockNotificationStore{}
	sender := newRecordingSender()
	svc := notificationFixture(t, store, sender)

	svc.Dispatch(context.Background(), "student@uni.edu", "first", "a")
	svc.Dispatch(context.Background(), "student@uni.edu", "second", "b")
	svc.Dispatch(context.Background(), "donor@corp.com", "other", "c")
	sender.wait(t, 3)

	notifications, unread, err := svc.ListForRecipient(context.Background(), "student@uni.edu")
	require.NoError(t, err)
	assert.Len(t, notifications, 2)
	assert.Equal(t, 2, unread)

	_, _, err = svc.ListForRecipient(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestNotificationServiceMarkViewed(t *testing.T) {
	store := &mockNotificationStore{}
	sender := newRecordingSender()
	svc := notificationFixture(t, store, sender)

	svc.Dispatch(context.Background(), "student@uni.edu", "first", "a")
	sender.wait(t, 1)
	id := store.notifications[0].ID

	require.NoError(t, svc.MarkViewed(context.Background(), id, "student@uni.edu"))
	_, unread, err := svc.ListForRecipient(context.Background(), "student@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// Only the recipient may mark their own notification.
	err = svc.MarkViewed(context.Background(), id, "donor@corp.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
