package models

// ImportRow is one incoming (test, question) definition from a batch import.
// Choices and CorrectAnswers arrive already split from their |-delimited form.
type ImportRow struct {
	TestTitle       string       `json:"test_title" validate:"required,min=1,max=255"`
	TestDescription string       `json:"test_description"`
	QuestionText    string       `json:"question_text" validate:"required,min=1"`
	QuestionType    QuestionType `json:"question_type" validate:"required,question_type"`
	Choices         []string     `json:"choices"`
	CorrectAnswers  []string     `json:"correct_answers"`
	Order           int          `json:"question_order" validate:"min=0"`
}

// ImportStats summarizes one reconciled batch.
type ImportStats struct {
	TestsCreated       int `json:"tests_created"`
	TestsUpdated       int `json:"tests_updated"`
	QuestionsCreated   int `json:"questions_created"`
	QuestionsReused    int `json:"questions_reused"`
	QuestionsRemoved   int `json:"questions_removed"`
	DuplicatesResolved int `json:"duplicates_resolved"`
}
