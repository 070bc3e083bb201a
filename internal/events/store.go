package events

import (
	"context"
	"time"
)

// Store owns the append-only page-view log and the visitor table.
//
// GetPageViews returns every view with a timestamp in [start, end], in insertion order.
// GetVisitor and UpdateVisitor return a nil visitor and a nil error when the id is unknown.
type Store interface {
	RecordPageView(ctx context.Context, input PageViewInput) (PageView, error)
	GetPageViews(ctx context.Context, start, end time.Time) ([]PageView, error)
	GetVisitor(ctx context.Context, id string) (*Visitor, error)
	SaveVisitor(ctx context.Context, visitor Visitor) (Visitor, error)
	UpdateVisitor(ctx context.Context, id string, lastSeen time.Time) (*Visitor, error)
}

