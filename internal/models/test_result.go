package models

import (
	"time"
)

// TestResult is the derived score row for a (user, test) pair. It is always
// recomputed from the current UserAnswer rows, never incrementally updated.
// CompletedAt records the first completion; RecomputedAt tracks freshness.
type TestResult struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"not null;uniqueIndex:idx_user_test"`
	TestID uint `json:"test_id" gorm:"not null;uniqueIndex:idx_user_test"`

	Score        float64    `json:"score" gorm:"not null" validate:"min=0,max=100"`
	IsCompleted  bool       `json:"is_completed" gorm:"default:false"`
	CompletedAt  *time.Time `json:"completed_at"`
	RecomputedAt time.Time  `json:"recomputed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Test Test `json:"-" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
}

func (TestResult) TableName() string {
	return "test_results"
}
