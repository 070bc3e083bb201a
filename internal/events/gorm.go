package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageViewRecord is the gorm model for the page_views table.
type PageViewRecord struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	PageURL   string  `gorm:"index;not null"`
	PageTitle *string
	VisitorID string  `gorm:"index;size:128;not null"`
	SessionID *string `gorm:"index;size:128"`
	Referrer  *string
	UserAgent *string
	Country   *string
	Device    *string
	Timestamp time.Time `gorm:"index;not null"`
	Duration  *int
	Bounced   *bool
	CreatedAt time.Time
}

func (PageViewRecord) TableName() string { return "page_views" }

// VisitorRecord is the gorm model for the visitors table.
type VisitorRecord struct {
	ID        string    `gorm:"primaryKey;size:128"`
	FirstSeen time.Time `gorm:"not null"`
	LastSeen  time.Time `gorm:"not null"`
	Visits    int       `gorm:"not null;default:1"`
}

func (VisitorRecord) TableName() string { return "visitors" }

// Models returns the tables the gorm store needs migrated.
func Models() []any {
	return []any{&PageViewRecord{}, &VisitorRecord{}}
}

// GormStore persists events through gorm. It is used with the sqlite driver.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store over an already migrated connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Ping validates connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) RecordPageView(ctx context.Context, input PageViewInput) (PageView, error) {
	record := PageViewRecord{
		PageURL:   input.PageURL,
		PageTitle: input.PageTitle,
		VisitorID: input.VisitorID,
		SessionID: input.SessionID,
		Referrer:  input.Referrer,
		UserAgent: input.UserAgent,
		Country:   input.Country,
		Device:    input.Device,
		Timestamp: input.Timestamp.UTC(),
		Duration:  input.Duration,
		Bounced:   input.Bounced,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return PageView{}, fmt.Errorf("failed to record page view: %w", err)
	}
	return record.toPageView(), nil
}

func (s *GormStore) GetPageViews(ctx context.Context, start, end time.Time) ([]PageView, error) {
	var records []PageViewRecord
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start.UTC(), end.UTC()).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching page views: %w", err)
	}

	views := make([]PageView, len(records))
	for i, record := range records {
		views[i] = record.toPageView()
	}
	return views, nil
}

func (s *GormStore) GetVisitor(ctx context.Context, id string) (*Visitor, error) {
	var record VisitorRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching visitor: %w", err)
	}
	visitor := record.toVisitor()
	return &visitor, nil
}

func (s *GormStore) SaveVisitor(ctx context.Context, visitor Visitor) (Visitor, error) {
	record := VisitorRecord{
		ID:        visitor.ID,
		FirstSeen: visitor.FirstSeen.UTC(),
		LastSeen:  visitor.LastSeen.UTC(),
		Visits:    1,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return Visitor{}, fmt.Errorf("failed to save visitor: %w", err)
	}
	return record.toVisitor(), nil
}

func (s *GormStore) UpdateVisitor(ctx context.Context, id string, lastSeen time.Time) (*Visitor, error) {
	var updated *Visitor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&VisitorRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"last_seen": lastSeen.UTC(),
				"visits":    gorm.Expr("visits + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var record VisitorRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		visitor := record.toVisitor()
		updated = &visitor
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update visitor: %w", err)
	}
	return updated, nil
}

func (r PageViewRecord) toPageView() PageView {
	return PageView{
		ID:        r.ID,
		PageURL:   r.PageURL,
		PageTitle: r.PageTitle,
		VisitorID: r.VisitorID,
		SessionID: r.SessionID,
		Referrer:  r.Referrer,
		UserAgent: r.UserAgent,
		Country:   r.Country,
		Device:    r.Device,
		Timestamp: r.Timestamp.UTC(),
		Duration:  r.Duration,
		Bounced:   r.Bounced,
	}
}

func (r VisitorRecord) toVisitor() Visitor {
	return Visitor{
		ID:        r.ID,
		FirstSeen: r.FirstSeen.UTC(),
		LastSeen:  r.LastSeen.UTC(),
		Visits:    r.Visits,
	}
}
