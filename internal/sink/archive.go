package sink

import (
	"context"
	"time"

	"arbview/internal/schema"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

// ArbUpdate is one archived record. Rows are appended, never updated.
type ArbUpdate struct {
	ID           uint64 `gorm:"primaryKey"`
	RunID        string `gorm:"size:36;index"`
	HePair       string `gorm:"size:64;index"`
	Spread       float64
	HasLow       bool
	LowExchange  string `gorm:"size:64"`
	LowExPair    string `gorm:"size:64"`
	LowPrice     string `gorm:"size:64"`
	HasHigh      bool
	HighExchange string `gorm:"size:64"`
	HighExPair   string `gorm:"size:64"`
	HighPrice    string `gorm:"size:64"`
	ReceivedAt   time.Time `gorm:"index"`
}

func (ArbUpdate) TableName() string {
	return "arb_updates"
}

// Archive appends every applied record to PostgreSQL, tagged with a run id
// unique to this process.
type Archive struct {
	db    *gorm.DB
	runID string
	now   func() time.Time
}

// NewArchive builds an archive sink, creating the table when migrate is set.
func NewArchive(db *gorm.DB, migrate bool) (*Archive, error) {
	if migrate {
		if err := db.AutoMigrate(&ArbUpdate{}); err != nil {
			return nil, errors.Wrap(err, "migrate arb_updates")
		}
	}
	return &Archive{
		db:    db,
		runID: uuid.NewString(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (a *Archive) Name() string {
	return "archive"
}

// RunID returns the id stamped on rows written by this archive.
func (a *Archive) RunID() string {
	return a.runID
}

func (a *Archive) Write(ctx context.Context, m schema.ArbMarket) error {
	row := newArbUpdate(a.runID, m, a.now())
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrapf(err, "archive pair %q", m.HePair)
	}
	return nil
}

func newArbUpdate(runID string, m schema.ArbMarket, at time.Time) ArbUpdate {
	row := ArbUpdate{
		RunID:      runID,
		HePair:     m.HePair,
		Spread:     m.Spread,
		ReceivedAt: at,
	}
	if m.Low != nil {
		row.HasLow = true
		row.LowExchange = m.Low.Exchange
		row.LowExPair = m.Low.ExPair
		row.LowPrice = m.Low.Price
	}
	if m.High != nil {
		row.HasHigh = true
		row.HighExchange = m.High.Exchange
		row.HighExPair = m.High.ExPair
		row.HighPrice = m.High.Price
	}
	return row
}
