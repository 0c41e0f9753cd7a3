package track17

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/ratelimit"
)

const MaxPageSize = 40

// CallRecorder observes every remote call. outcome is "ok", "transport" or "api".
type CallRecorder interface {
	ObserveAPICall(op, outcome string, d time.Duration)
}

// Client speaks the proxy's /api/packages contract. Every call goes through the shared queue.
type Client struct {
	baseURL string
	httpc   *http.Client
	queue   *ratelimit.Queue
	rec     CallRecorder
}

func New(baseURL string, httpc *http.Client, queue *ratelimit.Queue) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	if queue == nil {
		queue = ratelimit.NewQueue(ratelimit.DefaultInterval)
	}
	return &Client{baseURL: baseURL, httpc: httpc, queue: queue}
}

func (c *Client) WithRecorder(r CallRecorder) *Client {
	c.rec = r
	return c
}

// Register adds a number to the account. A rejected number is an API error.
func (c *Client) Register(ctx context.Context, number string, carrier int, tag string) error {
	if number == "" {
		return models.NewValidationError("number", "is required")
	}
	var res BatchResult
	if err := c.call(ctx, "register", http.MethodPost, "/api/packages", nil,
		RegisterRequest{Number: number, Carrier: carrier, Tag: tag}, &res); err != nil {
		return err
	}
	return rejection(res.Rejected)
}

// ListTracks returns one page of the account's packages. The proxy limits it to the last 7 days.
func (c *Client) ListTracks(ctx context.Context, page, pageSize int) ([]TrackListItem, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var res TrackListResult
	if err := c.call(ctx, "list", http.MethodGet, "/api/packages", q, nil, &res); err != nil {
		return nil, err
	}
	return res.Accepted, nil
}

// GetTrackInfo fetches the full history of one number.
func (c *Client) GetTrackInfo(ctx context.Context, number string) (*TrackInfo, error) {
	var res TrackInfoResult
	if err := c.call(ctx, "details", http.MethodGet, "/api/packages/"+url.PathEscape(number), nil, nil, &res); err != nil {
		return nil, err
	}
	if err := rejection(res.Rejected); err != nil {
		return nil, err
	}
	if len(res.Accepted) == 0 {
		return nil, NewAPIError(0, "no tracking info returned", nil)
	}
	return &res.Accepted[0], nil
}

// DeleteTracks issues one delete per number, in order, stopping at the first failure.
func (c *Client) DeleteTracks(ctx context.Context, numbers ...string) error {
	if len(numbers) == 0 {
		return models.NewValidationError("numbers", "must not be empty")
	}
	for _, n := range numbers {
		var res BatchResult
		if err := c.call(ctx, "delete", http.MethodDelete, "/api/packages/"+url.PathEscape(n), nil, nil, &res); err != nil {
			return err
		}
		if err := rejection(res.Rejected); err != nil {
			return err
		}
	}
	return nil
}

// ChangeInfo updates the carrier and, when tag is non-nil, the remote tag.
func (c *Client) ChangeInfo(ctx context.Context, number string, carrier int, tag *string) error {
	var res BatchResult
	body := ChangeInfoRequest{Number: number, Carrier: carrier, Items: ChangeInfoItems{Tag: tag}}
	if err := c.call(ctx, "changeinfo", http.MethodPatch, "/api/packages/"+url.PathEscape(number), nil, body, &res); err != nil {
		return err
	}
	return rejection(res.Rejected)
}

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	err := c.queue.Execute(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := c.do(ctx, method, path, query, body, out)
		if c.rec != nil {
			c.rec.ObserveAPICall(op, outcome(err), time.Since(start))
		}
		return err
	})
	if err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u = u.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		rd = bytes.NewReader(b)
	}

	var req *http.Request
	if rd != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), rd)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return newNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return NewTransportError(resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrap(err, "decode envelope")
	}
	if env.Code != 0 {
		return NewAPIError(env.Code, env.Msg, env.Data)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := AsError(err); ok {
		return e.Kind.String()
	}
	return "error"
}
