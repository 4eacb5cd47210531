package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBody bounds how much of a response we are willing to read.
const maxBody = 8 << 20

// A Client issues autosave requests.  Every method normalizes failures into
// an *Error; none of them panic on bad server responses.
type Client struct {
	HTTP *http.Client
}

// NewClient returns a Client using hc, or http.DefaultClient if hc is nil.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{HTTP: hc}
}

// Post sends body to url and returns the successful response payload.
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader, header http.Header) (Payload, error) {
	req, err := c.request(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.envelope(req)
}

// Get fetches the envelope at url.
func (c *Client) Get(ctx context.Context, url string) (Payload, error) {
	req, err := c.request(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.envelope(req)
}

// Delete issues a DELETE to url.
func (c *Client) Delete(ctx context.Context, url string) (Payload, error) {
	req, err := c.request(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	return c.envelope(req)
}

// Records fetches the list of records at url, in the order the server sent.
func (c *Client) Records(ctx context.Context, url string) ([]Record, error) {
	req, err := c.request(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, c.fail(req, KindMalformed, http.StatusOK, nil, err)
	}
	return records, nil
}

// envelope runs req and decodes a {success, ...} response object.
func (c *Client) envelope(req *http.Request) (Payload, error) {
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil || p == nil {
		if err == nil {
			err = fmt.Errorf("response is not an object")
		}
		return nil, c.fail(req, KindMalformed, http.StatusOK, nil, err)
	}
	if !p.Success() {
		return p, c.fail(req, KindFailure, http.StatusOK, p, nil)
	}
	return p, nil
}

// request builds a request whose construction errors, eg. a bad url, are
// transport errors like any other.
func (c *Client) request(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, URL: url, Err: err}
	}
	return req, nil
}

// do runs req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, c.fail(req, KindTransport, 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, c.fail(req, KindTransport, resp.StatusCode, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// error responses usually still carry an envelope with a reason
		var p Payload
		_ = json.Unmarshal(body, &p)
		return nil, c.fail(req, KindTransport, resp.StatusCode, p, fmt.Errorf("%s", http.StatusText(resp.StatusCode)))
	}
	return body, nil
}

func (c *Client) fail(req *http.Request, kind Kind, status int, p Payload, err error) *Error {
	return &Error{
		Kind:    kind,
		Method:  req.Method,
		URL:     req.URL.String(),
		Status:  status,
		Payload: p,
		Err:     err,
	}
}
