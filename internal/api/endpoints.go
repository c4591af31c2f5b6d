package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Zuo-Peng/vmon/internal/model"
)

// ErrActionFailed is returned when the back office answered a mutation with
// success=false.
var ErrActionFailed = errors.New("action rejected")

// LiveSessions is the live feed response.
type LiveSessions struct {
	Sessions    []model.Session   `json:"sessions"`
	UniqueCount int               `json:"uniqueCount"`
	Count       int               `json:"count"`
	Funnel      model.Funnel      `json:"funnel"`
	Intent      model.IntentStats `json:"intentStats"`
}

// UnmarshalJSON keeps the snapshot when a counter arrives with the wrong
// type; Count falls back to the number of sessions.
func (l *LiveSessions) UnmarshalJSON(b []byte) error {
	type plain LiveSessions
	return model.TolerateTypeErrors(json.Unmarshal(b, (*plain)(l)))
}

type ArchiveQuery struct {
	Limit  int
	Search string
}

type Action string

const (
	ActionVIP    Action = "vip"
	ActionCoupon Action = "coupon"
	ActionEmail  Action = "email"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionVIP, ActionCoupon, ActionEmail:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q (vip, coupon, email)", s)
}

// ActionResult is the reply to a session action or label update.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) LiveSessions(ctx context.Context) (*LiveSessions, error) {
	var out LiveSessions
	if err := c.do(ctx, "live_sessions", http.MethodGet, c.endpoint(nil, "live"), nil, &out); err != nil {
		return nil, err
	}
	out.Sessions = model.NormalizeAll(out.Sessions)
	if out.Count == 0 {
		out.Count = len(out.Sessions)
	}
	return &out, nil
}

func (c *Client) ArchivedSessions(ctx context.Context, q ArchiveQuery) ([]model.Session, error) {
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	var out struct {
		Sessions []model.Session `json:"sessions"`
	}
	if err := c.do(ctx, "archived_sessions", http.MethodGet, c.endpoint(query, "sessions"), nil, &out); err != nil {
		return nil, err
	}
	return model.NormalizeAll(out.Sessions), nil
}

// ReplayChunk fetches chunk n of a session recording. A success=false reply
// is reported as an error so callers treat it like a failed fetch.
func (c *Client) ReplayChunk(ctx context.Context, sessionID string, n int) (model.Chunk, error) {
	query := url.Values{"chunk": {strconv.Itoa(n)}}
	var out struct {
		Success *bool                 `json:"success"`
		Events  []model.RecordedEvent `json:"events"`
		HasMore bool                  `json:"hasMore"`
		Error   string                `json:"error"`
	}
	target := c.endpoint(query, "session", sessionID, "recording")
	if err := c.do(ctx, "replay_chunk", http.MethodGet, target, nil, &out); err != nil {
		return model.Chunk{Index: n}, err
	}
	if out.Success != nil && !*out.Success {
		return model.Chunk{Index: n}, fmt.Errorf("replay_chunk %d: %w: %s", n, ErrActionFailed, out.Error)
	}
	return model.Chunk{Index: n, Events: out.Events, HasMore: out.HasMore}, nil
}

func (c *Client) VisitorSessions(ctx context.Context, visitorID string) ([]model.Session, error) {
	var out struct {
		Sessions []model.Session `json:"sessions"`
	}
	if err := c.do(ctx, "visitor_sessions", http.MethodGet, c.endpoint(nil, "visitor", visitorID, "sessions"), nil, &out); err != nil {
		return nil, err
	}
	return model.NormalizeAll(out.Sessions), nil
}

func (c *Client) Visitors(ctx context.Context) ([]model.Visitor, error) {
	var out struct {
		Visitors []model.Visitor `json:"visitors"`
	}
	if err := c.do(ctx, "visitors", http.MethodGet, c.endpoint(nil, "visitors", "list"), nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Visitors {
		out.Visitors[i].Normalize()
	}
	return out.Visitors, nil
}

func (c *Client) SessionAction(ctx context.Context, sessionID string, action Action) (*ActionResult, error) {
	var out ActionResult
	target := c.endpoint(nil, "session", sessionID, string(action))
	if err := c.do(ctx, "session_action", http.MethodPost, target, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, out.err(string(action))
}

func (c *Client) SetVisitorLabel(ctx context.Context, visitorID, label string) (*ActionResult, error) {
	var out ActionResult
	body := map[string]string{"identifier": label}
	target := c.endpoint(nil, "visitor", visitorID, "identifier")
	if err := c.do(ctx, "visitor_label", http.MethodPost, target, body, &out); err != nil {
		return nil, err
	}
	return &out, out.err("identifier")
}

func (r *ActionResult) err(op string) error {
	if r.Success {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = r.Message
	}
	return fmt.Errorf("%s: %w: %s", op, ErrActionFailed, msg)
}
