package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// silenceThreshold is the inactivity window required before an utterance is
// considered complete. Conservative to avoid cutting the participant
// mid-sentence.
const silenceThreshold = 700 * time.Millisecond

// maxRestarts bounds the automatic reconnects after an unexpected stream end.
const maxRestarts = 2

// LiveTier streams microphone audio to the AssemblyAI realtime endpoint and
// emits interim text while the participant speaks and committed deltas once
// they pause. If the stream ends while the user has not asked to stop, it
// restarts itself; a restart budget exhausted or a hard error invokes
// onFailure so the coordinator can fall back to the recorder tier.
type LiveTier struct {
	apiKey    string
	language  string
	endpoint  string
	onPartial func(string)
	onFinal   func(string)
	onFailure func(error)

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	stopped   bool
	restarts  int
	audioCh   chan []byte
	closeCh   chan struct{}

	accMu        sync.Mutex
	latest       string
	committed    string
	silenceTimer *time.Timer
}

func NewLiveTier(apiKey, language string, onPartial, onFinal func(string), onFailure func(error)) *LiveTier {
	return &LiveTier{
		apiKey:    apiKey,
		language:  language,
		endpoint:  "wss://streaming.assemblyai.com/v3/ws",
		onPartial: onPartial,
		onFinal:   onFinal,
		onFailure: onFailure,
	}
}

type liveTurnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
}

// Start dials the streaming endpoint and begins the read/write loops.
func (l *LiveTier) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return nil
	}
	if l.apiKey == "" {
		return fmt.Errorf("live capture: api key missing")
	}
	l.stopped = false
	return l.dialLocked(ctx)
}

func (l *LiveTier) dialLocked(ctx context.Context) error {
	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("encoding", "pcm_s16le")
	params.Set("format_turns", "false")
	if l.language != "" {
		params.Set("language_code", l.language)
	}
	wsURL := fmt.Sprintf("%s?%s", l.endpoint, params.Encode())

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, map[string][]string{"Authorization": {l.apiKey}})
	if err != nil {
		if resp != nil {
			log.Printf("live capture: connect failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("live capture: connect: %w", err)
	}

	l.conn = conn
	l.connected = true
	l.audioCh = make(chan []byte, 1000)
	l.closeCh = make(chan struct{})

	go l.readLoop(ctx, conn, l.closeCh)
	go l.writeLoop(conn, l.audioCh, l.closeCh)
	return nil
}

// Feed queues 16kHz mono PCM for the stream. Drops on backpressure rather
// than blocking the audio path.
func (l *LiveTier) Feed(pcm []byte) {
	l.mu.Lock()
	ch := l.audioCh
	ok := l.connected
	l.mu.Unlock()
	if !ok || ch == nil {
		return
	}
	select {
	case ch <- pcm:
	default:
		log.Println("live capture: audio buffer full, dropping packet")
	}
}

// Stop terminates the session, flushing any pending delta first. Safe to call
// more than once.
func (l *LiveTier) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	conn := l.conn
	closeCh := l.closeCh
	l.conn = nil
	l.closeCh = nil
	l.connected = false
	l.mu.Unlock()

	l.flushDelta()
	if closeCh != nil {
		close(closeCh)
	}
	if conn != nil {
		_ = conn.WriteJSON(map[string]string{"type": "Terminate"})
		return conn.Close()
	}
	return nil
}

func (l *LiveTier) readLoop(ctx context.Context, conn *websocket.Conn, closeCh chan struct{}) {
	for {
		select {
		case <-closeCh:
			return
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			l.handleStreamEnd(ctx, err)
			return
		}
		l.processMessage(message)
	}
}

func (l *LiveTier) writeLoop(conn *websocket.Conn, audioCh chan []byte, closeCh chan struct{}) {
	for {
		select {
		case <-closeCh:
			return
		case pcm := <-audioCh:
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("live capture: send audio: %v", err)
				return
			}
		}
	}
}

// handleStreamEnd restarts the session when the platform cut it short, or
// reports failure once the user stopped it is ruled out and restarts are spent.
func (l *LiveTier) handleStreamEnd(ctx context.Context, cause error) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.connected = false
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	// Release the loops bound to the dead connection before anything else;
	// a redial installs fresh channels and Stop only closes the current one.
	if l.closeCh != nil {
		close(l.closeCh)
		l.closeCh = nil
	}
	if l.restarts < maxRestarts {
		l.restarts++
		n := l.restarts
		err := l.dialLocked(ctx)
		l.mu.Unlock()
		if err == nil {
			log.Printf("live capture: stream ended unexpectedly, restarted (%d)", n)
			return
		}
		cause = err
		l.mu.Lock()
	}
	l.stopped = true
	l.mu.Unlock()
	l.flushDelta()
	if l.onFailure != nil {
		l.onFailure(fmt.Errorf("live capture: stream ended: %w", cause))
	}
}

func (l *LiveTier) processMessage(message []byte) {
	var msg liveTurnMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("live capture: malformed message: %v", err)
		return
	}
	switch msg.Type {
	case "Begin":
		// session handshake, nothing to surface
	case "Turn":
		if msg.Transcript == "" {
			return
		}
		l.accMu.Lock()
		l.latest = msg.Transcript
		if l.silenceTimer == nil {
			l.silenceTimer = time.AfterFunc(silenceThreshold, l.commitDelta)
		} else {
			l.silenceTimer.Stop()
			l.silenceTimer.Reset(silenceThreshold)
		}
		l.accMu.Unlock()
		if l.onPartial != nil {
			l.onPartial(msg.Transcript)
		}
	case "Termination":
		l.flushDelta()
	case "Error":
		log.Printf("live capture: service error: %s", msg.Error)
	}
}

// commitDelta fires after a silence window: the text accumulated since the
// last commit becomes a final utterance.
func (l *LiveTier) commitDelta() {
	if delta := l.takeDelta(); delta != "" && l.onFinal != nil {
		l.onFinal(delta)
	}
}

func (l *LiveTier) flushDelta() {
	l.accMu.Lock()
	if l.silenceTimer != nil {
		l.silenceTimer.Stop()
		l.silenceTimer = nil
	}
	l.accMu.Unlock()
	l.commitDelta()
}

func (l *LiveTier) takeDelta() string {
	l.accMu.Lock()
	defer l.accMu.Unlock()
	delta := strings.TrimSpace(strings.TrimPrefix(l.latest, l.committed))
	l.committed = l.latest
	return delta
}
