package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VanBaNguyen/SurveyCode/internal/asr"
	"github.com/VanBaNguyen/SurveyCode/internal/config"
	"github.com/VanBaNguyen/SurveyCode/internal/httpserver"
	"github.com/VanBaNguyen/SurveyCode/internal/infra/storage"
	"github.com/VanBaNguyen/SurveyCode/internal/interview"
	"github.com/VanBaNguyen/SurveyCode/internal/llm"
	"github.com/VanBaNguyen/SurveyCode/internal/rtc"
	"github.com/VanBaNguyen/SurveyCode/internal/tts"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	log.Printf("loading speech model from %s", cfg.VoskModelPath)
	model, err := asr.LoadModel(cfg.VoskModelPath)
	if err != nil {
		log.Fatalf("speech model: %v", err)
	}
	defer model.Free()
	log.Printf("speech model loaded")

	registry := interview.NewRegistry()

	deps := httpserver.Deps{
		Cfg:           cfg,
		Registry:      registry,
		NewRecognizer: model.NewRecognizer,
	}
	if cfg.OpenAIKey != "" {
		client := llm.NewClient(cfg.OpenAIKey)
		deps.Reactions = client
		deps.Reviewer = client
	}
	if cfg.ElevenLabsKey != "" {
		deps.Synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		store, serr := storage.New(storage.Config{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if serr != nil {
			log.Printf("record storage disabled: %v", serr)
		} else {
			deps.Store = store
		}
	}

	var speaker rtc.PCMStreamer
	if cfg.DeepgramKey != "" {
		speaker = tts.NewDeepgramStreamer(cfg.DeepgramKey, cfg.DeepgramModel)
	}
	deps.Signaling = rtc.NewHandler(registry, speaker, cfg.ICEServersJSON)

	srv := httpserver.New(deps)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

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
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
