package interview

import "encoding/json"

// Question is one scripted interview question. Number is the 1-based ordinal.
type Question struct {
	Number int    `json:"question_number"`
	Text   string `json:"question"`
}

// Response is the committed record of one answered question.
type Response struct {
	QuestionNumber int    `json:"question_number"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	AIReaction     string `json:"ai_reaction"`
}

// CodeReview is the optional code-submission feedback record.
type CodeReview struct {
	CodeSource string `json:"code_source"`
	Code       string `json:"code"`
	Feedback   string `json:"feedback"`
}

// Record is the exported interview: what /api/save persists and returns.
type Record struct {
	Timestamp      string      `json:"timestamp"`
	TotalQuestions int         `json:"total_questions"`
	Responses      []Response  `json:"responses"`
	CodeReview     *CodeReview `json:"code_review"`
}

// MarshalIndent renders the record in its saved-file form.
func (r Record) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
