package models

// TestQuestion links a shared question to a test at a position. For a given
// test the order values are unique after any insert or removal completes;
// the ordering service is the only writer of the order column.
type TestQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	TestID     uint `json:"test_id" gorm:"not null;uniqueIndex:idx_test_question;index:idx_test_order"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_test_question"`
	Order      int  `json:"order" gorm:"column:order;not null;default:0;index:idx_test_order" validate:"min=0"`

	// Relations
	Test     *Test     `json:"-" gorm:"foreignKey:TestID"`
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}
