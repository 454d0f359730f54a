package mailer

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	url     string
	headers http.Header
	body    []byte
	code    int
	err     error
}

func (f *fakeClient) Post(url string, headers http.Header, body []byte) (int, []byte, error) {
	f.url, f.headers, f.body = url, headers, body
	return f.code, nil, f.err
}

func TestSend(t *testing.T) {
	conf := Config{URL: "https://mail.test/send", APIKey: "k", From: "no-reply@boostmarket.local"}

	t.Run("Delivered", func(t *testing.T) {
		client := &fakeClient{code: http.StatusAccepted}
		require.NoError(t, New(client, conf).Send("alice@example.com", "Code", "123456"))

		assert.Equal(t, conf.URL, client.url)
		assert.Equal(t, "Bearer k", client.headers.Get("Authorization"))
		var msg message
		require.NoError(t, json.Unmarshal(client.body, &msg))
		assert.Equal(t, message{From: conf.From, To: "alice@example.com", Subject: "Code", Text: "123456"}, msg)
	})

	t.Run("Rejected", func(t *testing.T) {
		client := &fakeClient{code: http.StatusBadRequest}
		assert.Error(t, New(client, conf).Send("alice@example.com", "Code", "123456"))
	})

	t.Run("Transport failure", func(t *testing.T) {
		client := &fakeClient{err: errors.New("dial tcp: refused")}
		assert.Error(t, New(client, conf).Send("alice@example.com", "Code", "123456"))
	})

	t.Run("Disabled", func(t *testing.T) {
		client := &fakeClient{}
		require.NoError(t, New(client, Config{}).Send("alice@example.com", "Code", "123456"))
		assert.Empty(t, client.url)
	})
}
