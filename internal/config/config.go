package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Recognizer
	VoskModelPath string

	// Endpoint detection tunables
	SilenceThreshold time.Duration
	MinAnswerLength  int
	MinFrameBytes    int

	// Interview content
	QuestionsPath string

	// External services
	OpenAIKey         string
	OpenAIModelID     string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string
	DeepgramModel     string

	// Record storage (optional)
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// WebRTC
	ICEServersJSON string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	modelPath := os.Getenv("VOSK_MODEL_PATH")
	if modelPath == "" {
		modelPath = "model"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - reactions and code review will use fallbacks")
	}
	openAIModel := os.Getenv("OPENAI_MODEL_ID")
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - spoken questions and reactions disabled")
	}
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if voiceID == "" {
		voiceID = "hzLyDn3IrvrdH83BdqUu"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - WebRTC voice output disabled")
	}
	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")

	questionsPath := os.Getenv("QUESTIONS_PATH")
	if questionsPath == "" {
		questionsPath = "interview_questions.json"
	}

	iceJSON := os.Getenv("ICE_SERVERS_JSON")
	if iceJSON == "" {
		iceJSON = `[{"urls":["stun:stun.l.google.com:19302"]}]`
	}

	silenceMs := envInt("SILENCE_THRESHOLD_MS", 1500)
	if silenceMs < 500 {
		silenceMs = 500
	}
	if silenceMs > 3000 {
		silenceMs = 3000
	}
	minAnswer := envInt("MIN_ANSWER_LENGTH", 10)
	if minAnswer < 5 {
		minAnswer = 5
	}
	if minAnswer > 20 {
		minAnswer = 20
	}
	minFrame := envInt("MIN_FRAME_BYTES", 320)

	log.Printf("config: HTTP_ADDRESS=%s silence=%dms min_answer=%d", addr, silenceMs, minAnswer)
	return Config{
		HTTPAddress:       addr,
		VoskModelPath:     modelPath,
		SilenceThreshold:  time.Duration(silenceMs) * time.Millisecond,
		MinAnswerLength:   minAnswer,
		MinFrameBytes:     minFrame,
		QuestionsPath:     questionsPath,
		OpenAIKey:         openAIKey,
		OpenAIModelID:     openAIModel,
		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: voiceID,
		DeepgramKey:       deepgramKey,
		DeepgramModel:     deepgramModel,
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:    envDefault("SUPABASE_BUCKET", "interviews"),
		ICEServersJSON:    iceJSON,
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}
