package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/studio-desk/internal/config"
	"github.com/spec-kit/studio-desk/internal/events"
)

func TestNotificationServiceLogsDispatchedEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher(logger)

	ns := NewNotificationService(dispatcher, logger, config.NotificationConfig{WebhookURL: "https://hooks.studio.test/desk"})
	ns.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketAssigned, TicketID: ticketID}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventFileDeleted, TicketID: ticketID, Actor: events.ActorFrom(editorActor)}))

	assert.Equal(t, 1, logs.FilterMessage("TicketAssigned").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendWebhookNotificationStub").Len())
	assert.Equal(t, 0, logs.FilterMessage("sendEmailNotificationStub").Len())

	audit := logs.FilterMessage(string(events.EventFileDeleted)).All()
	require.Len(t, audit, 1)
	assert.Equal(t, editorID, audit[0].ContextMap()["actor"])
}
