package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmehul96/Foresight/internal/capture"
	"github.com/cmehul96/Foresight/internal/config"
	"github.com/cmehul96/Foresight/internal/httpserver"
	"github.com/cmehul96/Foresight/internal/interview"
	"github.com/cmehul96/Foresight/internal/llm"
	"github.com/cmehul96/Foresight/internal/storage"
	"github.com/cmehul96/Foresight/internal/transcript"
	"github.com/cmehul96/Foresight/internal/tts"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	var gen llm.Generator
	switch cfg.Generator {
	case "gemini":
		gen = llm.NewGeminiClient(cfg.GeminiKey, cfg.GeminiModelID)
	default:
		gen = llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID)
	}

	var synth interview.Synthesizer
	switch {
	case cfg.DeepgramKey != "":
		synth = tts.NewDeepgram(cfg.DeepgramKey, cfg.DeepgramVoice, cfg.Language)
	case cfg.ElevenLabsKey != "":
		synth = tts.NewElevenLabs(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.Language)
	default:
		log.Println("no TTS backend configured; sessions run text-only")
	}

	var archiver capture.Archiver
	if store, err := storage.New(storage.Config{
		URL:            cfg.SupabaseURL,
		ServiceRoleKey: cfg.SupabaseKey,
		Bucket:         cfg.SupabaseBucket,
	}); err != nil {
		log.Printf("recording archive disabled: %v", err)
	} else {
		archiver = store
	}

	var newCapture func(ev capture.Events) *capture.Coordinator
	if cfg.AssemblyAIKey != "" {
		batch := capture.NewAssemblyAIBatch(cfg.AssemblyAIKey)
		newCapture = func(ev capture.Events) *capture.Coordinator {
			return capture.NewCoordinator(capture.Config{
				Live: func(onPartial, onFinal func(string), onFailure func(error)) capture.Tier {
					return capture.NewLiveTier(cfg.AssemblyAIKey, cfg.Language, onPartial, onFinal, onFailure)
				},
				Recorder: func(onFinal func(string), onStatus func(capture.Status)) capture.Tier {
					return capture.NewRecorderTier(batch, archiver, cfg.Language, onFinal, onStatus)
				},
			}, ev)
		}
	} else {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - voice capture disabled, typed input only")
	}

	gw := &httpserver.Gateway{
		Generator:  gen,
		Synth:      synth,
		NewCapture: newCapture,
		Session:    interview.Config{Language: cfg.Language},
		OnComplete: func(sessionID string, turns []transcript.Turn) {
			log.Printf("interview %s complete: %d turns", sessionID, len(turns))
			if archiver == nil {
				return
			}
			data, err := json.MarshalIndent(turns, "", "  ")
			if err != nil {
				log.Printf("interview %s: encode transcript: %v", sessionID, err)
				return
			}
			if err := archiver.Archive("transcripts/"+sessionID+".json", "application/json", data); err != nil {
				log.Printf("interview %s: archive transcript: %v", sessionID, err)
			}
		},
	}

	srv := httpserver.New(gw)

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- srv.Start(cfg.HTTPAddress)
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
