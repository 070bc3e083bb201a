package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrMissingRequiredFields is returned when a tracking call lacks pageUrl or visitorId.
var ErrMissingRequiredFields = errors.New("missing required fields")

const visitorLockStripes = 64

// TrackInput is a page view as submitted by the tracking client.
type TrackInput struct {
	PageURL   string `json:"pageUrl"`
	PageTitle string `json:"pageTitle"`
	VisitorID string `json:"visitorId"`
	SessionID string `json:"sessionId"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"userAgent"`
	Country   string `json:"country"`
	Device    string `json:"device"`
	IPAddress string `json:"-"`
}

// CountryResolver looks up a country for a client IP. An empty result means unknown.
type CountryResolver interface {
	Country(ipAddress string) string
}

// DeviceClassifier maps a user agent to a device class. An empty result means unknown.
type DeviceClassifier func(userAgent string) string

// Tracker is the ingestion boundary in front of the event store.
type Tracker struct {
	store   Store
	logger  *slog.Logger
	geo     CountryResolver
	devices DeviceClassifier
	now     func() time.Time

	locks [visitorLockStripes]sync.Mutex
}

type TrackerOption func(*Tracker)

// WithCountryResolver fills in the country from the client IP when the caller sent none.
func WithCountryResolver(geo CountryResolver) TrackerOption {
	return func(t *Tracker) { t.geo = geo }
}

// WithDeviceClassifier fills in the device from the user agent when the caller sent none.
func WithDeviceClassifier(fn DeviceClassifier) TrackerOption {
	return func(t *Tracker) { t.devices = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store Store, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records a page view stamped with the current time and upserts its visitor.
func (t *Tracker) Track(ctx context.Context, input TrackInput) (PageView, error) {
	if strings.TrimSpace(input.PageURL) == "" || strings.TrimSpace(input.VisitorID) == "" {
		return PageView{}, ErrMissingRequiredFields
	}

	now := t.now().UTC()

	view, err := t.store.RecordPageView(ctx, PageViewInput{
		PageURL:   input.PageURL,
		PageTitle: StringPtr(input.PageTitle),
		VisitorID: input.VisitorID,
		SessionID: StringPtr(input.SessionID),
		Referrer:  StringPtr(input.Referrer),
		UserAgent: StringPtr(input.UserAgent),
		Country:   StringPtr(t.country(input)),
		Device:    StringPtr(t.device(input)),
		Timestamp: now,
	})
	if err != nil {
		return PageView{}, err
	}

	if err := t.touchVisitor(ctx, input.VisitorID, now); err != nil {
		return PageView{}, err
	}

	t.logger.Debug("Page view recorded",
		slog.Uint64("id", uint64(view.ID)),
		slog.String("page_url", view.PageURL),
		slog.String("visitor_id", view.VisitorID))

	return view, nil
}

// touchVisitor creates the visitor on first sight and bumps it afterwards. Calls for the
// same id are serialized so no visit increment is lost.
func (t *Tracker) touchVisitor(ctx context.Context, id string, now time.Time) error {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := t.store.GetVisitor(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load visitor: %w", err)
	}

	if existing != nil {
		updated, err := t.store.UpdateVisitor(ctx, id, now)
		if err != nil {
			return fmt.Errorf("failed to update visitor: %w", err)
		}
		if updated != nil {
			return nil
		}
	}

	if _, err := t.store.SaveVisitor(ctx, Visitor{ID: id, FirstSeen: now, LastSeen: now}); err != nil {
		return fmt.Errorf("failed to save visitor: %w", err)
	}
	return nil
}

func (t *Tracker) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &t.locks[h.Sum32()%visitorLockStripes]
}

func (t *Tracker) country(input TrackInput) string {
	if input.Country != "" || t.geo == nil || input.IPAddress == "" {
		return input.Country
	}
	return t.geo.Country(input.IPAddress)
}

func (t *Tracker) device(input TrackInput) string {
	if input.Device != "" || t.devices == nil || input.UserAgent == "" {
		return input.Device
	}
	return t.devices(input.UserAgent)
}
