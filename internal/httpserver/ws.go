package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cmehul96/Foresight/internal/audio"
	"github.com/cmehul96/Foresight/internal/capture"
	"github.com/cmehul96/Foresight/internal/interview"
	"github.com/cmehul96/Foresight/internal/llm"
	"github.com/cmehul96/Foresight/internal/plan"
	"github.com/cmehul96/Foresight/internal/transcript"
)

// clientFrame is a control message from the participant's client.
// Types: "start", "input", "submit", "replay", "finish",
// "capture-start", "capture-stop", "bye".
type clientFrame struct {
	Type string     `json:"type"`
	Text string     `json:"text,omitempty"`
	Plan *plan.Plan `json:"plan,omitempty"`
	// Codec declares the inbound binary audio format on "start":
	// "pcm16" (default, 16kHz LE) or "opus" (mono frames).
	Codec string `json:"codec,omitempty"`
}

// serverFrame is a control message to the client. Synthesized audio travels
// separately as binary PCM frames.
type serverFrame struct {
	Type    string            `json:"type"`
	Session string            `json:"sessionId,omitempty"`
	Stage   string            `json:"stage,omitempty"`
	Text    string            `json:"text,omitempty"`
	Status  string            `json:"status,omitempty"`
	Error   string            `json:"error,omitempty"`
	Turns   []transcript.Turn `json:"turns,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// Gateway owns one interview session per websocket connection. Control flows
// as JSON text frames both ways; participant microphone audio arrives as
// binary PCM16 frames and synthesized speech leaves the same way.
type Gateway struct {
	Generator llm.Generator
	// Synth may be nil: sessions then run silent, text-only.
	Synth interview.Synthesizer
	// NewCapture builds a per-session capture coordinator; nil disables
	// voice input entirely.
	NewCapture func(ev capture.Events) *capture.Coordinator
	Session    interview.Config
	// OnComplete receives the finished transcript for persistence.
	OnComplete func(sessionID string, turns []transcript.Turn)
}

// ServeWS upgrades to WebSocket and runs the session protocol: a "start"
// frame carrying the research plan, then control frames until the interview
// finishes or the connection drops.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	out := &wsWriter{conn: conn}

	// Wait for the start frame before allocating anything.
	var p plan.Plan
	var opusIn bool
	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			log.Printf("ws read error before start: %v", rerr)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var f clientFrame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		switch strings.ToLower(f.Type) {
		case "start":
			if f.Plan == nil || f.Plan.Empty() {
				out.send(serverFrame{Type: "error", Error: "start requires a non-empty plan"})
				continue
			}
			p = *f.Plan
			opusIn = strings.EqualFold(f.Codec, "opus")
		case "bye":
			return
		default:
			continue
		}
		break
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opusDec *audio.OpusDecoder
	if opusIn {
		dec, derr := audio.NewOpusDecoder(16000)
		if derr != nil {
			out.send(serverFrame{Type: "error", Error: derr.Error()})
			return
		}
		opusDec = dec
	}

	sink := &wsSink{out: out}

	var sess *interview.Session
	var coord *capture.Coordinator
	var cap interview.Capture
	if g.NewCapture != nil {
		coord = g.NewCapture(capture.Events{
			OnPartial: func(text string) {
				if sess != nil {
					sess.PreviewInput(text)
				}
				out.send(serverFrame{Type: "partial", Text: text})
			},
			OnFinal: func(text string) {
				if sess != nil {
					sess.AppendFinalInput(text)
				}
			},
			OnStatus: func(s capture.Status) {
				out.send(serverFrame{Type: "capture-status", Status: string(s)})
			},
			OnNotice: func(msg string) {
				out.send(serverFrame{Type: "notice", Text: msg})
			},
		})
		cap = coord
	}

	cb := interview.Callbacks{
		OnStage: func(st interview.Stage) {
			out.send(serverFrame{Type: "stage", Stage: string(st)})
		},
		OnReveal: func(text string) {
			out.send(serverFrame{Type: "reveal", Text: text})
		},
		OnInput: func(text string) {
			out.send(serverFrame{Type: "input", Text: text})
		},
		OnNotice: func(msg string) {
			out.send(serverFrame{Type: "notice", Text: msg})
		},
	}
	var handoff func(turns []transcript.Turn)
	cb.OnComplete = func(turns []transcript.Turn) { handoff(turns) }

	sess = interview.New(g.Session, p, g.Generator, g.Synth, sink, cap, cb)
	handoff = func(turns []transcript.Turn) {
		out.send(serverFrame{Type: "transcript", Session: sess.ID, Turns: turns})
		if g.OnComplete != nil {
			g.OnComplete(sess.ID, turns)
		}
	}
	defer sess.Close()

	out.send(serverFrame{Type: "session", Session: sess.ID})
	log.Printf("[%s] interview started: %d planned questions", sess.ID, p.TotalQuestions())
	sess.Start(ctx)

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			log.Printf("[%s] ws closed: %v", sess.ID, rerr)
			return
		}
		if mt == websocket.BinaryMessage {
			if coord == nil {
				continue
			}
			if opusDec != nil {
				pcm, derr := opusDec.Decode(data)
				if derr != nil {
					log.Printf("[%s] dropping undecodable audio frame: %v", sess.ID, derr)
					continue
				}
				data = pcm
			}
			if len(data) > 0 {
				coord.Feed(data)
			}
			continue
		}
		var f clientFrame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		g.handle(ctx, sess, out, f)
		if strings.ToLower(f.Type) == "bye" {
			// The transcript frame has already been written; the client
			// initiates the close.
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, sess *interview.Session, out *wsWriter, f clientFrame) {
	var err error
	switch strings.ToLower(f.Type) {
	case "input":
		sess.SetInput(f.Text)
	case "submit":
		if f.Text != "" {
			err = sess.SubmitResponse(f.Text)
		} else {
			err = sess.SubmitBuffered()
		}
	case "replay":
		err = sess.Replay()
	case "finish":
		err = sess.CompleteEarly()
	case "capture-start":
		err = sess.StartCapture()
	case "capture-stop":
		err = sess.StopCapture(ctx)
	case "bye", "start":
		// start is only valid once; a repeat is ignored.
	default:
		log.Printf("[%s] unknown frame type %q", sess.ID, f.Type)
	}
	if err != nil {
		log.Printf("[%s] %s rejected: %v", sess.ID, f.Type, err)
		if !silentRejection(err) {
			out.send(serverFrame{Type: "error", Error: err.Error()})
		}
	}
}

// silentRejection reports whether the error is a caller-discipline rejection:
// logged, never surfaced to the participant. Empty answers and capture
// failures stay visible so the participant can react.
func silentRejection(err error) bool {
	switch {
	case errors.Is(err, interview.ErrDebounced),
		errors.Is(err, interview.ErrNotListening),
		errors.Is(err, interview.ErrProcessing),
		errors.Is(err, interview.ErrCaptureBusy),
		errors.Is(err, interview.ErrReplayDenied),
		errors.Is(err, interview.ErrFinished):
		return true
	}
	return false
}

// wsWriter serializes writes: gorilla connections allow one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(f serverFrame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(f); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func (w *wsWriter) binary(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		log.Printf("ws audio write error: %v", err)
	}
}

// wsSink ships synthesized 48kHz PCM to the client as binary frames, with
// JSON markers bracketing playback so the client can drain and drop buffers.
type wsSink struct {
	out *wsWriter
}

func (s *wsSink) WritePCM(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.out.binary(cp)
}

func (s *wsSink) FlushTail() {
	s.out.send(serverFrame{Type: "audio-end"})
}

func (s *wsSink) Reset() {
	s.out.send(serverFrame{Type: "audio-reset"})
}
