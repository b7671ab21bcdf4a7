package interview

import (
	"encoding/json"
	"log"
	"os"
)

// defaultQuestions is used when no questions file is available.
var defaultQuestions = []string{
	"Can you tell me a little about yourself?",
	"What are you currently working on?",
	"What are your main interests?",
	"What's a recent accomplishment you're proud of?",
	"Where do you see yourself in the future?",
}

type questionsFile struct {
	Questions []string `json:"questions"`
}

// LoadQuestions reads the interview question list from path, falling back to
// the built-in set when the file is missing or unreadable.
func LoadQuestions(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("questions: %v - using built-in question list", err)
		return defaultQuestions
	}
	var qf questionsFile
	if err := json.Unmarshal(data, &qf); err != nil {
		log.Printf("questions: parse %s: %v - using built-in question list", path, err)
		return defaultQuestions
	}
	if len(qf.Questions) == 0 {
		return defaultQuestions
	}
	return qf.Questions
}
