package events

import "time"

// PageView is an immutable page-view record. Optional fields are nil when the tracking
// call did not supply them.
type PageView struct {
	ID        uint      `json:"id"`
	PageURL   string    `json:"pageUrl"`
	PageTitle *string   `json:"pageTitle"`
	VisitorID string    `json:"visitorId"`
	SessionID *string   `json:"sessionId"`
	Referrer  *string   `json:"referrer"`
	UserAgent *string   `json:"userAgent"`
	Country   *string   `json:"country"`
	Device    *string   `json:"device"`
	Timestamp time.Time `json:"timestamp"`
	Duration  *int      `json:"duration"` // seconds, nil while the view is still in progress
	Bounced   *bool     `json:"bounced"`  // reserved, not read by aggregation
}

// PageViewInput is a page view before the store assigns its ID.
type PageViewInput struct {
	PageURL   string
	PageTitle *string
	VisitorID string
	SessionID *string
	Referrer  *string
	UserAgent *string
	Country   *string
	Device    *string
	Timestamp time.Time
	Duration  *int
	Bounced   *bool
}

// WithID builds the stored record for the given id.
func (in PageViewInput) WithID(id uint) PageView {
	return PageView{
		ID:        id,
		PageURL:   in.PageURL,
		PageTitle: in.PageTitle,
		VisitorID: in.VisitorID,
		SessionID: in.SessionID,
		Referrer:  in.Referrer,
		UserAgent: in.UserAgent,
		Country:   in.Country,
		Device:    in.Device,
		Timestamp: in.Timestamp,
		Duration:  in.Duration,
		Bounced:   in.Bounced,
	}
}

// Title returns the page title, falling back to the URL.
func (pv PageView) Title() string {
	if pv.PageTitle != nil && *pv.PageTitle != "" {
		return *pv.PageTitle
	}
	return pv.PageURL
}

// Source returns the referrer, normalized to DirectReferrer when absent.
func (pv PageView) Source() string {
	if pv.Referrer == nil || *pv.Referrer == "" {
		return DirectReferrer
	}
	return *pv.Referrer
}

// Session returns the session id and whether one is set.
func (pv PageView) Session() (string, bool) {
	if pv.SessionID == nil || *pv.SessionID == "" {
		return "", false
	}
	return *pv.SessionID, true
}

// Visitor is a stable per-visitor record supplied by the caller.
type Visitor struct {
	ID        string    `json:"id"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Visits    int       `json:"visits"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
