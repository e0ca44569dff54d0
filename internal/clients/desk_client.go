package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"atlasgym/internal/visits"
)

func (c *Client) CheckIn(ctx context.Context, code string) (*visits.Visit, error) {
	req := struct {
		Code string `json:"code"`
	}{code}
	var v visits.Visit
	if err := c.do(ctx, http.MethodPost, "/visits/checkin", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) TodayCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/visits/today", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Alerts returns denied check-ins after the cursor and the cursor to pass
// next time. The zero cursor returns every recorded alert.
func (c *Client) Alerts(ctx context.Context, after visits.Cursor) ([]visits.Visit, visits.Cursor, error) {
	path := "/visits/alerts"
	if !after.At.IsZero() {
		q := url.Values{"at": {after.At.Format(time.RFC3339Nano)}, "id": {after.ID}}
		path += "?" + q.Encode()
	}
	var resp struct {
		Alerts []visits.Visit `json:"alerts"`
		Cursor visits.Cursor  `json:"cursor"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, after, err
	}
	return resp.Alerts, resp.Cursor, nil
}
