package usecase

import (
	"context"
	"testing"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications_ListAndMarkRead(t *testing.T) {
	repo := memory.NewNotificationRepository()
	uc := NewNotificationUsecase(quietLogger(), repo)
	user := uuid.New()

	for _, msg := range []string{"Appointment booked", "Appointment reminder"} {
		require.NoError(t, repo.Create(context.Background(), &entity.NotificationRecord{UserID: user, Message: msg, EventType: entity.EventAppointmentCreated}))
	}
	require.NoError(t, repo.Create(context.Background(), &entity.NotificationRecord{UserID: uuid.New(), Message: "other", EventType: entity.EventAppointmentCreated}))

	list, err := uc.GetMyNotifications(asPatient(user), false, 0)
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "Appointment reminder", list.Notifications[0].Message)

	require.NoError(t, uc.MarkAsRead(asPatient(user), list.Notifications[0].ID))

	unread, err := uc.GetMyNotifications(asPatient(user), true, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, unread.Total)

	err = uc.MarkAsRead(asPatient(uuid.New()), list.Notifications[1].ID)
	assert.ErrorIs(t, err, entity.ErrNotFound, "cannot mark someone else's notification")
}
