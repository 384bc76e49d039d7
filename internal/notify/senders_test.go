package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"renthaus/internal/config"
	"renthaus/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendGridSender(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewSendGridSender(config.EmailConfig{SendGridAPIKey: "SG.test", FromEmail: "no-reply@renthaus.ng", FromName: "RentHaus"})
	s.host = server.URL

	err := s.Send(context.Background(), domain.EmailMessage{To: "c1@example.com", Subject: "Hi", HTMLBody: "<p>Hi</p>", TextBody: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", got["subject"])
	from := got["from"].(map[string]any)
	assert.Equal(t, "no-reply@renthaus.ng", from["email"])
}

func TestSendGridSender_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	s := NewSendGridSender(config.EmailConfig{SendGridAPIKey: "bad"})
	s.host = server.URL

	err := s.Send(context.Background(), domain.EmailMessage{To: "c1@example.com", Subject: "Hi", TextBody: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	assert.Error(t, s.Send(context.Background(), domain.EmailMessage{Subject: "no recipient"}))
}

type mockBot struct {
	mock.Mock
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestTelegramSender(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.Text == "hello"
	})).Return(tgbotapi.Message{MessageID: 1}, nil).Once()
	bot.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found"))

	s := &TelegramSender{bot: bot}
	require.NoError(t, s.SendText(context.Background(), 42, "hello"))
	assert.Error(t, s.SendText(context.Background(), 7, "hello"))
}
