package rtc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"

	"github.com/VanBaNguyen/SurveyCode/internal/interview"
)

// pcm16kChunkBytes is 100ms of PCM16LE at 16kHz, the recognizer feed size.
const pcm16kChunkBytes = 3200

// dcEvent mirrors the WebSocket transport's message shapes on the "events"
// data channel.
type dcEvent struct {
	Type           string `json:"type"`
	Question       string `json:"question,omitempty"`
	QuestionNumber int    `json:"question_number,omitempty"`
	Completed      bool   `json:"completed,omitempty"`
	Text           string `json:"text,omitempty"`
	IsFinal        bool   `json:"is_final,omitempty"`
	FullTranscript string `json:"full_transcript,omitempty"`
	Answer         string `json:"answer,omitempty"`
	Reaction       string `json:"reaction,omitempty"`
	Message        string `json:"message,omitempty"`
}

// attachMedia wires one peer connection to its interview session: mic frames
// into the recognizer, events out on the data channel, interviewer speech
// onto the outgoing track.
func (h *Handler) attachMedia(sess *interview.Session, pc *webrtc.PeerConnection, outTrack *webrtc.TrackLocalStaticSample) {
	var pacedPtr atomic.Pointer[OpusPacedWriter]
	var eventsDC atomic.Pointer[webrtc.DataChannel]
	var speakMu sync.Mutex // one utterance on the track at a time
	done := make(chan struct{})
	var closeOnce sync.Once

	send := func(ev dcEvent) {
		dc := eventsDC.Load()
		if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		_ = dc.SendText(string(data))
	}

	speak := func(text string) {
		if h.speaker == nil || text == "" {
			return
		}
		paced := pacedPtr.Load()
		if paced == nil {
			return
		}
		speakMu.Lock()
		defer speakMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pcmCh, errCh := h.speaker.StreamPCM48k(ctx, text)
		for chunk := range pcmCh {
			paced.WritePCM(chunk)
		}
		if err := <-errCh; err != nil {
			log.Printf("[%s] speak: %v", sess.ID(), err)
		}
		paced.FlushTail()
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("[%s] PeerConnection state: %s", sess.ID(), state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			closeOnce.Do(func() { close(done) })
			if paced := pacedPtr.Load(); paced != nil {
				paced.FlushTail()
				time.AfterFunc(400*time.Millisecond, paced.Close)
			}
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("[%s] ICE state: %s", sess.ID(), state.String())
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != "events" {
			return
		}
		log.Printf("[%s] events channel opened", sess.ID())
		eventsDC.Store(dc)
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			cmd := strings.TrimSpace(strings.ToLower(string(msg.Data)))
			switch cmd {
			case "next_question":
				q, ok := sess.NextQuestion()
				if !ok {
					send(dcEvent{Type: "question", Completed: true})
					return
				}
				send(dcEvent{Type: "question", Question: q.Text, QuestionNumber: q.Number})
				go speak(q.Text)
			case "submit_answer":
				ev, err := sess.SubmitAnswer()
				if err != nil {
					send(dcEvent{Type: "error", Message: err.Error()})
					return
				}
				send(dcEvent{Type: "answer_accepted", QuestionNumber: ev.QuestionNumber, Answer: ev.Answer})
			}
		})
	})

	// Forward watcher submissions and resolved reactions; speak reactions.
	go func() {
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
					send(dcEvent{Type: "auto_submit", QuestionNumber: ev.QuestionNumber, Answer: ev.Answer})
				case interview.EventReaction:
					send(dcEvent{Type: "reaction", QuestionNumber: ev.QuestionNumber, Reaction: ev.Reaction})
					speak(ev.Reaction)
				}
			}
		}
	}()

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		log.Printf("[%s] remote audio track: codec=%s", sess.ID(), remote.Codec().MimeType)

		paced, err := NewOpusPacedWriter(outTrack)
		if err != nil {
			log.Printf("[%s] opus encoder error: %v", sess.ID(), err)
			return
		}
		pacedPtr.Store(paced)

		dec, err := opus.NewDecoder(16000, 1)
		if err != nil {
			log.Printf("[%s] opus decoder error: %v", sess.ID(), err)
			return
		}

		go func() {
			pcmBuf := make([]byte, 0, pcm16kChunkBytes*4)
			samples := make([]int16, 1920)
			for {
				pkt, _, readErr := remote.ReadRTP()
				if readErr != nil {
					return
				}
				if len(pkt.Payload) == 0 {
					continue
				}
				n, decErr := dec.Decode(pkt.Payload, samples)
				if decErr != nil {
					continue
				}
				start := len(pcmBuf)
				need := n * 2
				if cap(pcmBuf)-start < need {
					tmp := make([]byte, start, start+need+pcm16kChunkBytes)
					copy(tmp, pcmBuf)
					pcmBuf = tmp
				}
				pcmBuf = pcmBuf[:start+need]
				out := pcmBuf[start:]
				for i := 0; i < n; i++ {
					binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(samples[i]))
				}
				for len(pcmBuf) >= pcm16kChunkBytes {
					chunk := pcmBuf[:pcm16kChunkBytes]
					h.ingestChunk(sess, chunk, send)
					copy(pcmBuf, pcmBuf[pcm16kChunkBytes:])
					pcmBuf = pcmBuf[:len(pcmBuf)-pcm16kChunkBytes]
				}
			}
		}()
	})
}

// ingestChunk feeds one 100ms chunk and relays what the recognizer heard.
func (h *Handler) ingestChunk(sess *interview.Session, chunk []byte, send func(dcEvent)) {
	res, ev, err := sess.Ingest(chunk)
	if err != nil {
		log.Printf("[%s] ingest: %v", sess.ID(), err)
		return
	}
	if res != nil && len(strings.TrimSpace(res.Text)) > 2 {
		send(dcEvent{
			Type:           "transcription",
			Text:           res.Text,
			IsFinal:        res.Final,
			FullTranscript: sess.Transcript(),
		})
	}
	if ev != nil {
		send(dcEvent{Type: "auto_submit", QuestionNumber: ev.QuestionNumber, Answer: ev.Answer})
	}
}
