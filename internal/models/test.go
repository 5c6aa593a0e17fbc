package models

import (
	"time"
)

type Test struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:255;uniqueIndex" validate:"required,min=1,max=255"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []TestQuestion `json:"questions" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}
