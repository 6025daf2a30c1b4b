package everytriv

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"resty.dev/v3"
)

// RestyTransport sends requests through a resty client. Resty retries stay
// disabled; the pipeline owns retrying.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport creates a transport with pooled connection settings.
func NewRestyTransport() *RestyTransport {
	transportSettings := &resty.TransportSettings{
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &RestyTransport{client: resty.NewWithTransportSettings(transportSettings)}
}

// NewRestyTransportWithClient wraps a pre-configured resty client.
func NewRestyTransportWithClient(client *resty.Client) *RestyTransport {
	if client == nil {
		return NewRestyTransport()
	}
	return &RestyTransport{client: client}
}

// Do implements Transport.
func (t *RestyTransport) Do(req *http.Request) (*http.Response, error) {
	r := t.client.R().SetContext(req.Context())
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if req.Body != nil {
		payload, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		r.SetBody(payload)
	}

	restyResp, err := r.Execute(req.Method, req.URL.String())
	if err != nil {
		return nil, err
	}

	return &http.Response{
		Status:     restyResp.Status(),
		StatusCode: restyResp.StatusCode(),
		Header:     restyResp.Header(),
		Body:       io.NopCloser(bytes.NewReader(restyResp.Bytes())),
		Request:    req,
	}, nil
}

// Close releases idle connections held by the resty client.
func (t *RestyTransport) Close() error {
	return t.client.Close()
}
