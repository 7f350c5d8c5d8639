package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"grab-relay/internal/config"
	"grab-relay/internal/core"
)

const (
	contentType     = "application/json;charset:utf-8"
	maxResponseSize = 4 << 20
)

// Response is a successful upstream reply, relayed to the caller unchanged.
type Response struct {
	Status    int
	Body      json.RawMessage
	RequestID string
}

type Options struct {
	URL                string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client sends signed order-grab requests. Every call is a single attempt.
type Client struct {
	url        string
	httpClient *http.Client

	now          func() time.Time
	newRequestID func() string
}

func NewClient(cfg config.UpstreamConfig) *Client {
	return NewClientWithOptions(Options{
		URL:                cfg.URL,
		Timeout:            cfg.Timeout(),
		InsecureSkipVerify: cfg.SkipVerify(),
	})
}

func NewClientWithOptions(opts Options) *Client {
	timeout := 10 * time.Second
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
	return &Client{
		url:          opts.URL,
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		now:          time.Now,
		newRequestID: NewRequestID,
	}
}

func (c *Client) URL() string { return c.url }

// GrabOrder claims orderID on behalf of the client owning creds.
func (c *Client) GrabOrder(ctx context.Context, creds core.ClientConfig, orderID core.OrderID) (Response, error) {
	sig := newSignature(creds.Key, orderID.Text, c.newRequestID(), c.now())
	payload, err := json.Marshal(map[string]json.RawMessage{"orderId": orderID.Raw})
	if err != nil {
		return Response{}, &UpstreamError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, &UpstreamError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Version", creds.Version)
	req.Header.Set("X-Auth-Token", creds.Token)
	req.Header.Set("Sign", sig.Sign)
	req.Header.Set("Uuid", sig.RequestID)
	req.Header.Set("Timestamp", sig.Timestamp)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Response{}, &UpstreamError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return Response{}, parseStatusError(resp.StatusCode, body)
	}
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return Response{}, &UpstreamError{
			Status: resp.StatusCode,
			Err:    errors.New("upstream returned a non-JSON body"),
		}
	}
	return Response{Status: resp.StatusCode, Body: body, RequestID: sig.RequestID}, nil
}
