package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/VanBaNguyen/SurveyCode/internal/audio"
	"github.com/VanBaNguyen/SurveyCode/internal/interview"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// wsInbound is a client frame: streamed audio or a manual submission.
type wsInbound struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Audio     json.RawMessage `json:"audio,omitempty"`
}

// wsOutbound covers every server-to-client message shape.
type wsOutbound struct {
	Type           string `json:"type"`
	Status         string `json:"status,omitempty"`
	Message        string `json:"message,omitempty"`
	Text           string `json:"text,omitempty"`
	IsFinal        bool   `json:"is_final,omitempty"`
	FullTranscript string `json:"full_transcript,omitempty"`
	QuestionNumber int    `json:"question_number,omitempty"`
	Answer         string `json:"answer,omitempty"`
	Reaction       string `json:"reaction,omitempty"`
	HasAudio       bool   `json:"has_audio,omitempty"`
	Audio          string `json:"audio,omitempty"`
}

// wsConn serializes writes; the event forwarder and the read loop share the
// connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(v wsOutbound) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// handleWebSocket runs the audio streaming loop for one client. A connection
// can address any live session; the first message naming a session attaches an
// event forwarder for it.
func (s *Server) handleWebSocket(c echo.Context) error {
	raw, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return nil
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	_ = conn.send(wsOutbound{Type: "connected", Status: "ready"})

	done := make(chan struct{})
	defer close(done)
	attached := make(map[string]struct{})

	for {
		mt, data, rerr := raw.ReadMessage()
		if rerr != nil {
			return nil
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.send(wsOutbound{Type: "error", Message: "invalid message"})
			continue
		}

		sess, err := s.deps.Registry.Get(msg.SessionID)
		if err != nil {
			_ = conn.send(wsOutbound{Type: "error", Message: "Invalid session"})
			continue
		}
		if _, ok := attached[msg.SessionID]; !ok {
			attached[msg.SessionID] = struct{}{}
			go forwardEvents(conn, sess, done)
		}

		switch msg.Type {
		case "audio_chunk":
			s.handleAudioChunk(conn, sess, msg.Audio)
		case "submit_answer":
			handleManualSubmit(conn, sess)
		default:
			_ = conn.send(wsOutbound{Type: "error", Message: "unknown message type"})
		}
	}
}

// handleAudioChunk normalizes and ingests one frame, echoing the recognizer
// observation back to the client. Short frames drop silently.
func (s *Server) handleAudioChunk(conn *wsConn, sess *interview.Session, payload json.RawMessage) {
	frame, err := s.frames.Payload(payload)
	if errors.Is(err, audio.ErrShortFrame) {
		return
	}
	if err != nil {
		log.Printf("[%s] audio frame: %v", sess.ID(), err)
		_ = conn.send(wsOutbound{Type: "error", Message: "Audio processing error"})
		return
	}

	res, ev, err := sess.Ingest(frame)
	if err != nil {
		log.Printf("[%s] ingest: %v", sess.ID(), err)
		_ = conn.send(wsOutbound{Type: "error", Message: "Audio processing error"})
		return
	}
	if res != nil && len(strings.TrimSpace(res.Text)) > 2 {
		_ = conn.send(wsOutbound{
			Type:           "transcription",
			Text:           res.Text,
			IsFinal:        res.Final,
			FullTranscript: sess.Transcript(),
		})
	}
	if ev != nil {
		_ = conn.send(wsOutbound{
			Type:           "auto_submit",
			QuestionNumber: ev.QuestionNumber,
			Answer:         ev.Answer,
		})
	}
}

func handleManualSubmit(conn *wsConn, sess *interview.Session) {
	ev, err := sess.SubmitAnswer()
	switch {
	case errors.Is(err, interview.ErrAnswerTooShort):
		_ = conn.send(wsOutbound{Type: "error", Message: "Answer too short"})
	case errors.Is(err, interview.ErrAlreadySubmitted):
		_ = conn.send(wsOutbound{Type: "error", Message: "Answer already submitted"})
	case errors.Is(err, interview.ErrNoActiveQuestion):
		_ = conn.send(wsOutbound{Type: "error", Message: "No active question"})
	case err != nil:
		_ = conn.send(wsOutbound{Type: "error", Message: "submission failed"})
	default:
		_ = conn.send(wsOutbound{
			Type:           "answer_accepted",
			QuestionNumber: ev.QuestionNumber,
			Answer:         ev.Answer,
		})
	}
}

// forwardEvents relays watcher-driven submissions and resolved reactions to
// the client until the connection or the session goes away.
func forwardEvents(conn *wsConn, sess *interview.Session, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case interview.EventAutoSubmit:
				_ = conn.send(wsOutbound{
					Type:           "auto_submit",
					QuestionNumber: ev.QuestionNumber,
					Answer:         ev.Answer,
				})
			case interview.EventReaction:
				out := wsOutbound{
					Type:           "reaction",
					QuestionNumber: ev.QuestionNumber,
					Reaction:       ev.Reaction,
					HasAudio:       ev.HasAudio,
				}
				if ev.HasAudio {
					out.Audio = base64.StdEncoding.EncodeToString(ev.Audio)
				}
				_ = conn.send(out)
			}
		}
	}
}
