package app

import (
	"context"
	"testing"

	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/infrastructure/expo"
	snsinfra "github.com/attendance-notifier/internal/infrastructure/sns"
	"github.com/attendance-notifier/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransport_Expo(t *testing.T) {
	cfg := &config.Config{PushProvider: "expo", ExpoPushURL: "https://exp.host/--/api/v2/push/send"}

	tr, err := newTransport(context.Background(), cfg)

	require.NoError(t, err)
	assert.IsType(t, &expo.Client{}, tr)
	assert.True(t, tr.ValidToken("ExponentPushToken[abc]"))
}

func TestNewTransport_SNS(t *testing.T) {
	cfg := &config.Config{
		PushProvider:   "sns",
		SNSRegion:      "us-east-1",
		AWSAccessKeyID: "test",
		AWSSecretKey:   "test",
	}

	tr, err := newTransport(context.Background(), cfg)

	require.NoError(t, err)
	assert.IsType(t, &snsinfra.Transport{}, tr)
}

func TestNewTransport_Unknown(t *testing.T) {
	_, err := newTransport(context.Background(), &config.Config{PushProvider: "pigeon"})
	assert.ErrorContains(t, err, "pigeon")
}

func TestNew_BadTimezone(t *testing.T) {
	cfg := &config.Config{Schedule: config.Schedule{Timezone: "Mars/Olympus"}}

	_, err := New(context.Background(), cfg, nil, logger.Nop())

	assert.ErrorContains(t, err, "Mars/Olympus")
}
