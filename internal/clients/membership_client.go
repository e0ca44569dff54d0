package clients

import (
	"context"
	"net/http"
	"net/url"

	"atlasgym/internal/membership"
)

func (c *Client) GetMember(ctx context.Context, id string) (*membership.Member, error) {
	var m membership.Member
	if err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers applies filter (all, active_only, expiring, inactive,
// visits_today) and a name or code search.
func (c *Client) ListMembers(ctx context.Context, filter membership.Filter, search string) ([]membership.View, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", string(filter))
	}
	if search != "" {
		q.Set("q", search)
	}
	path := "/members"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []membership.View
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RegisterMembers(ctx context.Context, plan string, participants []membership.Participant) (*membership.Registration, error) {
	req := struct {
		Plan         string                   `json:"plan"`
		Participants []membership.Participant `json:"participants"`
	}{plan, participants}
	var reg membership.Registration
	if err := c.do(ctx, http.MethodPost, "/members", req, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Renew renews id and, when it belongs to a group, everyone in it.
func (c *Client) Renew(ctx context.Context, id, plan string) (*membership.Renewal, error) {
	req := struct {
		Plan string `json:"plan"`
	}{plan}
	var ren membership.Renewal
	if err := c.do(ctx, http.MethodPost, "/members/"+url.PathEscape(id)+"/renew", req, &ren); err != nil {
		return nil, err
	}
	return &ren, nil
}
