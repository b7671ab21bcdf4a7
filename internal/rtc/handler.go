// Package rtc carries the interview over WebRTC: the candidate's microphone
// arrives as an Opus track, recognized text and turn events flow back over a
// data channel, and the interviewer's voice is streamed onto an outgoing
// track.
package rtc

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/VanBaNguyen/SurveyCode/internal/interview"
)

// PCMStreamer produces 48kHz linear16 PCM chunks for spoken text.
type PCMStreamer interface {
	StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// Handler negotiates peer connections for live interview sessions.
type Handler struct {
	registry *interview.Registry
	speaker  PCMStreamer // nil disables spoken output
	iceJSON  string
}

// NewHandler builds a Handler bound to the session registry.
func NewHandler(registry *interview.Registry, speaker PCMStreamer, iceServersJSON string) *Handler {
	return &Handler{registry: registry, speaker: speaker, iceJSON: iceServersJSON}
}

// signalMessage is the WebSocket signaling format: offer/answer, trickle ICE
// and errors.
type signalMessage struct {
	Type          string  `json:"type"`
	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	Message       string  `json:"message,omitempty"`
}

var signalingUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// ServeHTTP upgrades to WebSocket and performs offer/answer plus trickle ICE
// for the session named by ?session_id=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := signalingUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("rtc: ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sess, err := h.registry.Get(r.URL.Query().Get("session_id"))
	if err != nil {
		_ = conn.WriteJSON(signalMessage{Type: "error", Message: "Invalid session"})
		return
	}

	var offerSDP string
	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var m signalMessage
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		switch strings.ToLower(m.Type) {
		case "offer":
			if m.SDP != "" {
				offerSDP = m.SDP
			}
		case "bye":
			return
		}
		if offerSDP != "" {
			break
		}
	}

	pc, outTrack, err := h.newPeer()
	if err != nil {
		_ = conn.WriteJSON(signalMessage{Type: "error", Message: err.Error()})
		return
	}
	defer pc.Close()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			_ = conn.WriteJSON(signalMessage{Type: "ice-complete"})
			return
		}
		init := c.ToJSON()
		_ = conn.WriteJSON(signalMessage{
			Type:          "candidate",
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	go func() {
		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			var m signalMessage
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			switch strings.ToLower(m.Type) {
			case "candidate":
				if m.Candidate == "" {
					continue
				}
				_ = pc.AddICECandidate(webrtc.ICECandidateInit{
					Candidate: m.Candidate, SDPMid: m.SDPMid, SDPMLineIndex: m.SDPMLineIndex,
				})
			case "bye":
				_ = pc.Close()
				return
			}
		}
	}()

	h.attachMedia(sess, pc, outTrack)

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(remote); err != nil {
		_ = conn.WriteJSON(signalMessage{Type: "error", Message: err.Error()})
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = conn.WriteJSON(signalMessage{Type: "error", Message: err.Error()})
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = conn.WriteJSON(signalMessage{Type: "error", Message: err.Error()})
		return
	}
	local := pc.LocalDescription()
	if local == nil {
		_ = conn.WriteJSON(signalMessage{Type: "error", Message: "no local description"})
		return
	}
	if err := conn.WriteJSON(signalMessage{Type: "answer", SDP: local.SDP}); err != nil {
		return
	}

	for {
		time.Sleep(2 * time.Second)
		switch pc.ConnectionState() {
		case webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected:
			return
		}
	}
}

// newPeer prepares a PeerConnection with default codecs and interceptors plus
// the outgoing interviewer audio track.
func (h *Handler) newPeer() (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return nil, nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: parseICEServers(h.iceJSON)})
	if err != nil {
		return nil, nil, err
	}
	outTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"interviewer-audio", "interviewer",
	)
	if err != nil {
		_ = pc.Close()
		return nil, nil, err
	}
	if _, err := pc.AddTrack(outTrack); err != nil {
		_ = pc.Close()
		return nil, nil, err
	}
	return pc, outTrack, nil
}

func parseICEServers(iceJSON string) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if err := json.Unmarshal([]byte(iceJSON), &servers); err == nil && len(servers) > 0 {
		return servers
	}
	return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
}
