package mail

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/pkg/config"
)

func TestPasswordResetTemplate(t *testing.T) {
	msg, err := PasswordReset("School", Address{Name: "Amina", Email: "amina@school.local"}, "https://app/reset?token=abc", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "amina@school.local", msg.To[0].Email)
	assert.Contains(t, msg.Text, "https://app/reset?token=abc")
	assert.Contains(t, msg.Text, "24 hours")
	assert.Contains(t, msg.HTML, `href="https://app/reset?token=abc"`)
}

func TestSendgridMailerBuildsRequest(t *testing.T) {
	m := NewSendgridMailer(config.MailConfig{SendgridAPIKey: "key", FromName: "School", FromAddress: "no-reply@school.local", AppName: "School"})
	var captured restRequest
	m.send = func(r restRequest) (int, string, error) {
		captured = r
		return 202, "", nil
	}

	err := m.Send(context.Background(), Message{To: []Address{{Name: "A", Email: "a@school.local"}}, Subject: "Hi", Text: "body"})
	require.NoError(t, err)
	assert.Equal(t, "key", captured.key)

	var payload struct {
		Personalizations []struct {
			Subject string `json:"subject"`
		} `json:"personalizations"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "[School] Hi", payload.Personalizations[0].Subject)
}

func TestSendgridMailerReportsRejection(t *testing.T) {
	m := NewSendgridMailer(config.MailConfig{SendgridAPIKey: "key"})
	m.send = func(restRequest) (int, string, error) { return 401, "unauthorized", nil }

	err := m.Send(context.Background(), Message{To: []Address{{Email: "a@school.local"}}})
	assert.ErrorContains(t, err, "401")
}

func TestNewMailerFallsBackToConsole(t *testing.T) {
	_, ok := NewMailer(config.MailConfig{Provider: "sendgrid"}, zap.NewNop()).(*ConsoleMailer)
	assert.True(t, ok)

	_, ok = NewMailer(config.MailConfig{Provider: "sendgrid", SendgridAPIKey: "key"}, zap.NewNop()).(*SendgridMailer)
	assert.True(t, ok)
}

type flakyMailer struct {
	failures int
	sent     chan Message
}

func (f *flakyMailer) Send(_ context.Context, msg Message) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("temporary")
	}
	f.sent <- msg
	return nil
}

func TestDispatcherRetries(t *testing.T) {
	mailer := &flakyMailer{failures: 1, sent: make(chan Message, 1)}
	d := NewDispatcher(mailer, 1, 2, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue("test", Message{Subject: "hello"}))
	select {
	case msg := <-mailer.sent:
		assert.Equal(t, "hello", msg.Subject)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}
