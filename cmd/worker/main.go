/**
 * Stream OCR Worker - Main Entry Point
 *
 * Continuously recognizes text in a live video source.
 *
 * Architecture:
 * - OpenCV capture goroutine writing the newest frame into a shared slot
 * - Recognition worker (gocv preprocessing + Tesseract) on a fixed period
 * - Text and detection image sinks: in-memory slots, Redis pub/sub, asynq
 *   tasks, websocket push and a PNG artifact in the config directory
 * - gin HTTP API for readout and live settings updates
 */

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/api"
	"github.com/adverant/nexus/streamocr-worker/internal/config"
	"github.com/adverant/nexus/streamocr-worker/internal/frame"
	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"github.com/adverant/nexus/streamocr-worker/internal/processor"
	"github.com/adverant/nexus/streamocr-worker/internal/processor/tesseract"
	"github.com/adverant/nexus/streamocr-worker/internal/sink"
	"github.com/adverant/nexus/streamocr-worker/internal/storage"
	"github.com/adverant/nexus/streamocr-worker/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load(".env")

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Configure(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.NewLogger("main").With("instance_id", cfg.InstanceID)
	if envErr != nil {
		log.Warn(".env not found, using system environment variables")
	}

	log.Info("Stream OCR worker starting",
		"capture_source", cfg.CaptureSource,
		"config_dir", cfg.ConfigDir,
		"http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	artifacts, err := storage.NewArtifacts(cfg.ConfigDir, logging.NewLogger("storage"))
	if err != nil {
		log.Error("Failed to initialize config storage", "error", err)
		os.Exit(1)
	}

	// Output sinks
	textSlot := sink.NewTextSlot()
	imageSlot := sink.NewImageSlot()
	previewSlot := sink.NewImageSlot()

	hub := sink.NewHub(cfg.InstanceID, logging.NewLogger("websocket"))
	go hub.Run(ctx)

	maskWriter := storage.NewMaskWriter(artifacts, cfg.InstanceID, logging.NewLogger("storage"))
	maskWriter.Start()

	textSinks := sink.TextFanout{textSlot, hub}

	var publisher *sink.RedisPublisher
	var queueSink *sink.QueueSink
	if cfg.RedisURL != "" {
		publisher, err = sink.NewRedisPublisher(&sink.RedisPublisherConfig{
			RedisURL:   cfg.RedisURL,
			Channel:    cfg.RedisChannel,
			InstanceID: cfg.InstanceID,
			Logger:     logging.NewLogger("redis"),
		})
		if err != nil {
			log.Warn("Redis publisher disabled", "error", err)
		} else {
			publisher.Start()
			textSinks = append(textSinks, publisher)
		}

		if cfg.QueueEnabled {
			queueSink, err = sink.NewQueueSink(&sink.QueueSinkConfig{
				RedisURL:   cfg.RedisURL,
				QueueName:  cfg.QueueName,
				InstanceID: cfg.InstanceID,
				Logger:     logging.NewLogger("queue"),
			})
			if err != nil {
				log.Warn("Queue sink disabled", "error", err)
			} else {
				queueSink.Start()
				textSinks = append(textSinks, queueSink)
			}
		}
	}

	renderer, err := processor.NewFontRenderer(nil)
	if err != nil {
		log.Error("Failed to load overlay font", "error", err)
		os.Exit(1)
	}
	defer renderer.Close()

	// Frame handoff
	slot := frame.NewSlot()
	defer slot.Close()

	if cfg.CaptureSource != "" {
		capture, err := frame.NewCapture(&frame.CaptureConfig{
			Source:   cfg.CaptureSource,
			Interval: cfg.CaptureInterval,
		}, slot, logging.NewLogger("capture"))
		if err != nil {
			log.Error("Failed to initialize capture", "error", err)
			os.Exit(1)
		}
		go capture.Run(ctx)
	} else {
		log.Warn("CAPTURE_SOURCE not set, worker will idle until frames arrive")
	}

	// Recognition worker
	manager, err := worker.NewManager(&worker.ManagerConfig{
		InstanceID: cfg.InstanceID,
		Frames:     slot,
		Sinks: processor.Sinks{
			Text:    textSinks,
			Image:   sink.ImageFanout{imageSlot, maskWriter},
			Preview: previewSlot,
		},
		Renderer:   renderer,
		NewBackend: tesseract.New,
		Artifacts:  artifacts,
		Logger:     logging.NewLogger("worker"),
	})
	if err != nil {
		log.Error("Failed to create worker", "error", err)
		os.Exit(1)
	}

	// A failed initialization leaves the worker idle; settings can be fixed via the API.
	if err := manager.Initialize(cfg.Pipeline); err != nil {
		log.Warn("Worker not initialized", "error", err)
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(&api.RouterConfig{
		InstanceID: cfg.InstanceID,
		Controller: manager,
		Text:       textSlot,
		Image:      imageSlot,
		Preview:    previewSlot,
		Hub:        hub,
		Logger:     logging.NewLogger("api"),
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	log.Info("Stream OCR worker is READY", "state", manager.State().String())

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, initiating graceful shutdown", "signal", sig.String())
	case <-ctx.Done():
		log.Warn("Shutting down after fatal error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error stopping HTTP server", "error", err)
	}

	if err := manager.Close(); err != nil {
		log.Warn("Error closing worker", "error", err)
	}
	cancel()

	maskWriter.Stop()
	if publisher != nil {
		if err := publisher.Stop(); err != nil {
			log.Warn("Error stopping Redis publisher", "error", err)
		}
	}
	if queueSink != nil {
		if err := queueSink.Stop(); err != nil {
			log.Warn("Error stopping queue sink", "error", err)
		}
	}

	artifacts.Cleanup(cfg.InstanceID)
	log.Info("Shutdown complete")
}
