// Package clients wraps net/http for outbound API calls.
package clients

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"
)

const timeout = time.Second * 15

var ErrFailedCloseResponseBody = errors.New("failed close response body")

type HTTPClientI interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPClient struct {
	client HTTPClientI
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// SetClient swaps the transport, mostly for tests.
func (h *HTTPClient) SetClient(client HTTPClientI) {
	h.client = client
}

func (h *HTTPClient) Get(url string, headers http.Header) (int, []byte, error) {
	return h.send(http.MethodGet, url, headers, nil)
}

func (h *HTTPClient) Post(url string, headers http.Header, body []byte) (int, []byte, error) {
	return h.send(http.MethodPost, url, headers, body)
}

func (h *HTTPClient) send(method, url string, headers http.Header, body []byte) (statusCode int, respBody []byte, err error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if headers != nil {
		req.Header = headers.Clone()
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if e := resp.Body.Close(); e != nil {
			err = errors.Join(err, ErrFailedCloseResponseBody)
		}
	}()

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
