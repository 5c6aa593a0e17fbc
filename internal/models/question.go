package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
)

// AutoScored reports whether answers of this type are compared against the
// stored correct set. Text answers need manual verification first.
func (t QuestionType) AutoScored() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

type Question struct {
	ID   uint         `json:"id" gorm:"primaryKey"`
	Text string       `json:"text" gorm:"type:text;not null" validate:"required,min=1"`
	Type QuestionType `json:"question_type" gorm:"not null;size:10;index" validate:"required,question_type"`

	// Choices is required for single/multiple questions; order is irrelevant.
	Choices        datatypes.JSONSlice[string] `json:"choices" gorm:"type:jsonb"`
	CorrectAnswers datatypes.JSONSlice[string] `json:"correct_answers" gorm:"type:jsonb"`

	// Fingerprint keys identity-based reuse during import so the duplicate
	// lookup is an index hit instead of a table scan.
	Fingerprint string `json:"-" gorm:"size:64;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	TestLinks []TestQuestion `json:"-" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// ComputeFingerprint derives the content hash used for duplicate detection.
// Two questions are identical iff text, type, choices-as-set and
// correct-answers-as-set all match; element order never matters.
func ComputeFingerprint(text string, qType QuestionType, choices, correctAnswers []string) string {
	sortedChoices := append([]string(nil), choices...)
	sort.Strings(sortedChoices)
	sortedAnswers := append([]string(nil), correctAnswers...)
	sort.Strings(sortedAnswers)

	var b strings.Builder
	b.WriteString(text)
	b.WriteByte(0x1f)
	b.WriteString(string(qType))
	b.WriteByte(0x1f)
	b.WriteString(strings.Join(sortedChoices, "\x1e"))
	b.WriteByte(0x1f)
	b.WriteString(strings.Join(sortedAnswers, "\x1e"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// RefreshFingerprint recomputes the stored fingerprint from the current content.
func (q *Question) RefreshFingerprint() {
	q.Fingerprint = ComputeFingerprint(q.Text, q.Type, q.Choices, q.CorrectAnswers)
}
