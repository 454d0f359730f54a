// Package mailer sends transactional email through an HTTP mail API.
package mailer

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type Client interface {
	Post(url string, headers http.Header, body []byte) (int, []byte, error)
}

type Config struct {
	URL    string
	APIKey string
	From   string
}

type Mailer struct {
	client Client
	conf   Config
}

func New(client Client, conf Config) *Mailer {
	return &Mailer{client: client, conf: conf}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send delivers one plain-text message. Without a configured URL the message is only logged.
func (m *Mailer) Send(to, subject, text string) error {
	if m.conf.URL == "" {
		zap.L().Info("mail delivery disabled, message logged", zap.String("to", to),
			zap.String("subject", subject), zap.String("text", text))
		return nil
	}

	body, err := json.Marshal(message{From: m.conf.From, To: to, Subject: subject, Text: text})
	if err != nil {
		return err
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if m.conf.APIKey != "" {
		headers.Set("Authorization", "Bearer "+m.conf.APIKey)
	}

	code, _, err := m.client.Post(m.conf.URL, headers, body)
	if err != nil {
		zap.L().Error("can't send mail", zap.String("to", to), zap.Error(err))
		return err
	}
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		zap.L().Error("mail api rejected message", zap.String("to", to), zap.Int("status", code))
		return fmt.Errorf("mail api responded with status %d", code)
	}
	return nil
}
