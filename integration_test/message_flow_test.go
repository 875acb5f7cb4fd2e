package integration

import (
	"strings"
	"testing"
	"time"

	"dashchat/internal/conversation"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
	"dashchat/internal/service"
	"dashchat/pkg/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMessageFlow(t *testing.T) {
	env := NewTestEnvironment(t, "store_flow")
	ctx := testContext(t, 10*time.Second)

	olivia := env.Login("olivia")
	anna := env.Login("anna")

	composer := olivia.Composer(nil)
	composer.SetTarget("anna", "")
	composer.SetDraft("  hello anna  ")

	result := composer.Send(ctx)
	require.True(t, result.OK(), "send failed: %v", result.Err)
	assert.Equal(t, service.TransportStore, result.Transport)
	require.NotNil(t, result.Message)
	assert.Equal(t, "hello anna", result.Message.Content)
	assert.Equal(t, models.DeliveryStatusSent, result.Message.Status)
	assert.Empty(t, composer.Draft())

	// the recipient sees it as received and unread
	received, err := anna.API.ListMessages(ctx, "olivia")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, models.DeliveryStatusReceived, received[0].Status)
	assert.True(t, received[0].Unread)

	convs := conversation.Conversations(received, "anna")
	require.Len(t, convs, 1)
	assert.Equal(t, "olivia", convs[0].CounterpartID)
	assert.Equal(t, 1, convs[0].UnreadCount)

	days := conversation.Days(convs[0])
	require.Len(t, days, 1)
	assert.Equal(t, received[0].Day(), days[0].Key)

	// fetching confirmed delivery to the sender
	sent, err := olivia.API.ListMessages(ctx, "anna")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, sent[0].Status)

	updated, err := anna.API.MarkRead(ctx, "olivia")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	sent, err = olivia.API.ListMessages(ctx, "anna")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, models.DeliveryStatusRead, sent[0].Status)
	assert.Equal(t, "Read", sent[0].Status.Indicator().Label)
}

func TestStatusUpdates(t *testing.T) {
	env := NewTestEnvironment(t, "status_updates")
	ctx := testContext(t, 10*time.Second)

	olivia := env.Login("olivia")
	anna := env.Login("anna")

	msg, err := olivia.API.SendMessage(ctx, models.SendMessageRequest{RecipientID: "anna", Content: "invoice attached"})
	require.NoError(t, err)

	// only the recipient may confirm reading
	_, err = olivia.API.UpdateStatus(ctx, msg.ID, models.DeliveryStatusRead)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.GetCode(err))

	read, err := anna.API.UpdateStatus(ctx, msg.ID, models.DeliveryStatusRead)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRead, read.Status)
	assert.False(t, read.Unread)

	// statuses never move backwards
	_, err = anna.API.UpdateStatus(ctx, msg.ID, models.DeliveryStatusDelivered)
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestComposer_RestoresDraftOnFailure(t *testing.T) {
	env := NewTestEnvironment(t, "composer_failure")
	ctx := testContext(t, 10*time.Second)

	olivia := env.Login("olivia")
	anna := env.Login("anna")

	composer := olivia.Composer(nil)
	composer.SetTarget("anna", "")

	tooLong := strings.Repeat("x", MaxContentLength+1)
	composer.SetDraft(tooLong)

	result := composer.Send(ctx)
	require.Error(t, result.Err)
	assert.False(t, result.OK())
	assert.Equal(t, tooLong, composer.Draft())

	messages, err := anna.API.ListMessages(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestComposer_EmptyDraftIsNoop(t *testing.T) {
	env := NewTestEnvironment(t, "composer_empty")
	ctx := testContext(t, 10*time.Second)

	olivia := env.Login("olivia")
	composer := olivia.Composer(nil)
	composer.SetTarget("anna", "")

	for _, draft := range []string{"", "   ", "\n\t"} {
		composer.SetDraft(draft)
		result := composer.Send(ctx)
		assert.True(t, result.Skipped)
		assert.NoError(t, result.Err)
	}

	messages, err := olivia.API.ListMessages(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestTaskChannel(t *testing.T) {
	env := NewTestEnvironment(t, "task_channel")
	ctx := testContext(t, 10*time.Second)

	olivia := env.Login("olivia")
	anna := env.Login("anna")

	composer := olivia.Composer(nil)
	composer.SetTarget("anna", "task-42")
	composer.SetDraft("receipts for task 42")
	require.True(t, composer.Send(ctx).OK())

	composer.SetTarget("anna", "")
	composer.SetDraft("direct note")
	require.True(t, composer.Send(ctx).OK())

	messages, err := anna.API.ListMessages(ctx, "")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	convs := conversation.Conversations(messages, "anna")
	require.Len(t, convs, 2)

	task, ok := conversation.Find(convs, "task:task-42")
	require.True(t, ok)
	assert.True(t, task.IsTaskChannel())

	direct, ok := conversation.Find(convs, "olivia")
	require.True(t, ok)
	assert.False(t, direct.IsTaskChannel())

	byTask := conversation.GroupBy(messages, constants.GroupByTask)
	assert.Len(t, byTask, 2)
}
