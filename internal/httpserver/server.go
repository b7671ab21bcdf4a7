// Package httpserver exposes the interview over REST endpoints and a
// WebSocket for streaming audio frames.
package httpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VanBaNguyen/SurveyCode/internal/asr"
	"github.com/VanBaNguyen/SurveyCode/internal/audio"
	"github.com/VanBaNguyen/SurveyCode/internal/config"
	"github.com/VanBaNguyen/SurveyCode/internal/endpoint"
	"github.com/VanBaNguyen/SurveyCode/internal/interview"
)

// RecordStore persists finished interview records.
type RecordStore interface {
	SaveRecord(ctx context.Context, name string, rec interview.Record) error
}

// Deps carries everything the routes need. Nil service fields degrade to
// fallbacks rather than failing requests.
type Deps struct {
	Cfg           config.Config
	Registry      *interview.Registry
	NewRecognizer asr.Factory
	Reactions     interview.ReactionGenerator
	Reviewer      interview.CodeReviewer
	Synth         interview.Synthesizer
	Store         RecordStore
	Signaling     http.Handler // optional WebRTC voice entry point
}

// Server bundles the router and its dependencies.
type Server struct {
	Router    http.Handler
	deps      Deps
	questions []string
	frames    audio.Normalizer
}

// New constructs the HTTP server with all routes registered.
func New(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		questions: interview.LoadQuestions(deps.Cfg.QuestionsPath),
		frames:    audio.NewNormalizer(deps.Cfg.MinFrameBytes),
	}

	e := newRouter()
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/api/start", s.handleStart)
	e.GET("/api/question/:session_id", s.handleNextQuestion)
	e.POST("/api/tts", s.handleTTS)
	e.POST("/api/code_review", s.handleCodeReview)
	e.POST("/api/save/:session_id", s.handleSave)
	e.GET("/ws", s.handleWebSocket)
	if deps.Signaling != nil {
		e.Any("/webrtc", echo.WrapHandler(deps.Signaling))
	}

	s.Router = e
	return s
}

func (s *Server) newSession(id string) (*interview.Session, error) {
	rec, err := s.deps.NewRecognizer()
	if err != nil {
		return nil, fmt.Errorf("httpserver: recognizer: %w", err)
	}
	return interview.NewSession(interview.Options{
		ID:         id,
		Questions:  s.questions,
		Recognizer: rec,
		Endpoint: endpoint.Config{
			SilenceThreshold: s.deps.Cfg.SilenceThreshold,
			MinAnswerLength:  s.deps.Cfg.MinAnswerLength,
		},
		Reactions: s.deps.Reactions,
		Reviewer:  s.deps.Reviewer,
		Synth:     s.deps.Synth,
	}), nil
}

func (s *Server) handleStart(c echo.Context) error {
	sess, err := s.deps.Registry.Create(s.newSession)
	if err != nil {
		log.Printf("start session: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start session"})
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": sess.ID(), "status": "ready"})
}

func (s *Server) handleNextQuestion(c echo.Context) error {
	sess, err := s.deps.Registry.Get(c.Param("session_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid session"})
	}
	q, ok := sess.NextQuestion()
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"question": nil, "completed": true})
	}

	resp := echo.Map{
		"question":        q.Text,
		"question_number": q.Number,
		"has_audio":       false,
		"completed":       false,
	}
	if s.deps.Synth != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
		clip, serr := s.deps.Synth.Synthesize(ctx, q.Text)
		cancel()
		if serr != nil {
			log.Printf("[%s] question tts: %v", sess.ID(), serr)
		} else if len(clip) > 0 {
			resp["has_audio"] = true
			resp["audio"] = base64.StdEncoding.EncodeToString(clip)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTTS(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No text provided"})
	}
	if s.deps.Synth == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "TTS generation failed"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()
	clip, err := s.deps.Synth.Synthesize(ctx, req.Text)
	if err != nil || len(clip) == 0 {
		log.Printf("tts: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "TTS generation failed"})
	}
	return c.Blob(http.StatusOK, "audio/mpeg", clip)
}

func (s *Server) handleCodeReview(c echo.Context) error {
	var req struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	sess, err := s.deps.Registry.Get(req.SessionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid session"})
	}
	feedback, err := sess.SubmitCode(c.Request().Context(), req.Code)
	if errors.Is(err, interview.ErrNoCode) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No code provided"})
	}
	if err != nil {
		log.Printf("[%s] code review: %v", sess.ID(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "review failed"})
	}
	resp := echo.Map{"feedback": feedback, "has_audio": false}
	if s.deps.Synth != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
		clip, serr := s.deps.Synth.Synthesize(ctx, feedback)
		cancel()
		if serr == nil && len(clip) > 0 {
			resp["has_audio"] = true
			resp["audio"] = base64.StdEncoding.EncodeToString(clip)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSave(c echo.Context) error {
	sess, err := s.deps.Registry.Get(c.Param("session_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid session"})
	}

	// Wait briefly for in-flight reactions so the record is complete.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	if err := sess.Flush(ctx); err != nil {
		log.Printf("[%s] save: reactions still pending: %v", sess.ID(), err)
	}

	rec := sess.Export()
	filename := fmt.Sprintf("interview_responses_%s.json", time.Now().Format("20060102_150405"))
	if err := writeRecordFile(filename, rec); err != nil {
		log.Printf("[%s] save: %v", sess.ID(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to save"})
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.SaveRecord(ctx, filename, rec); err != nil {
			log.Printf("[%s] record upload failed: %v", sess.ID(), err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"filename": filename, "status": "saved"})
}

func writeRecordFile(name string, rec interview.Record) error {
	data, err := rec.MarshalIndent()
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}
