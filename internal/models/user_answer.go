package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserAnswer holds one user's answer to one question of one test. The triple
// is unique; a resubmission overwrites the previous row. Answer is stored in
// normalized form: a list of strings even for single-answer questions.
type UserAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	UserID     uint `json:"user_id" gorm:"not null;uniqueIndex:idx_user_test_question"`
	TestID     uint `json:"test_id" gorm:"not null;uniqueIndex:idx_user_test_question;index"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_user_test_question"`

	Answer datatypes.JSONSlice[string] `json:"answer" gorm:"type:jsonb;not null"`

	// Scoring state. IsCorrect is written by the scoring engine for
	// auto-scored types and by a reviewer for text answers; IsVerified marks
	// that a text answer has been manually reviewed.
	IsCorrect  *bool `json:"is_correct"`
	IsVerified bool  `json:"is_verified" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User     User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Test     Test     `json:"-" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
	Question Question `json:"-" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (UserAnswer) TableName() string {
	return "user_answers"
}
