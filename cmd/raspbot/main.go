// raspbot is the voice-driven robot companion service. It runs the
// hands-free conversation loop, the serialized action dispatcher, and
// the browser control surface in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vtc-robotics/raspbot/internal/config"
	"github.com/vtc-robotics/raspbot/internal/log"
	"github.com/vtc-robotics/raspbot/pkg/actions"
	"github.com/vtc-robotics/raspbot/pkg/audioio"
	"github.com/vtc-robotics/raspbot/pkg/capture"
	"github.com/vtc-robotics/raspbot/pkg/cue"
	"github.com/vtc-robotics/raspbot/pkg/dialog"
	"github.com/vtc-robotics/raspbot/pkg/history"
	"github.com/vtc-robotics/raspbot/pkg/hub"
	"github.com/vtc-robotics/raspbot/pkg/phone"
	"github.com/vtc-robotics/raspbot/pkg/search"
	"github.com/vtc-robotics/raspbot/pkg/stt"
	"github.com/vtc-robotics/raspbot/pkg/tts"
	"github.com/vtc-robotics/raspbot/pkg/vad"
	"github.com/vtc-robotics/raspbot/pkg/vision"
	"github.com/vtc-robotics/raspbot/pkg/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Server.LogLevel)
	logger := log.L()

	if err := run(cfg); err != nil {
		logger.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Action dispatch to the physical device.
	dispatcher := actions.NewRPCDispatcher(cfg.Robot.Endpoint, cfg.Robot.DeviceID, logger)
	queue := actions.NewQueue(actions.QueueConfig{
		Size:        cfg.Robot.QueueSize,
		MinInterval: cfg.Robot.MinInterval,
	}, dispatcher, logger)
	routines := actions.NewRoutines(queue, logger)

	// Audio capture and speech detection.
	audioCfg := audioio.Config{
		Backend:       audioio.Backend(cfg.Audio.Backend),
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
		ChunkInterval: cfg.Audio.ChunkInterval,
	}
	source, err := audioio.NewSource(audioCfg, logger)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	defer source.Close()

	classifier, err := vad.New(vad.Options{
		Backend:           cfg.VAD.Backend,
		EnergyThreshold:   cfg.VAD.EnergyThreshold,
		ModelPath:         cfg.VAD.ModelPath,
		RuntimeLibPath:    cfg.VAD.RuntimeLibPath,
		SpeechProbability: cfg.VAD.SpeechProbability,
	}, logger)
	if err != nil {
		return fmt.Errorf("speech classifier: %w", err)
	}
	defer classifier.Close()

	sessionCfg := capture.SessionConfigFor(audioCfg,
		cfg.Phone.MaxWait, cfg.Phone.TrailingSilence, cfg.Phone.HardCeiling)
	recorder := capture.NewRecorder(source, classifier, sessionCfg, logger)

	// Transcription backends behind the runtime-switchable selector.
	selector, err := stt.NewSelector(stt.Mode(cfg.STT.Mode), cfg.STT.Language,
		sttFactory(cfg, logger), logger)
	if err != nil {
		return fmt.Errorf("stt selector: %w", err)
	}
	defer selector.Close()

	// Dialog engine and routing.
	kb, err := dialog.LoadKnowledgeBase(cfg.Dialog.KnowledgeBase)
	if err != nil {
		logger.Warn("knowledge base load failed, using defaults", "error", err)
		kb = dialog.DefaultKnowledgeBase()
	}
	engine, err := dialog.NewClient(
		dialog.WithBaseURL(cfg.Dialog.BaseURL),
		dialog.WithAPIKey(cfg.Dialog.APIKey),
		dialog.WithModel(cfg.Dialog.Model),
		dialog.WithTemperature(cfg.Dialog.Temperature),
		dialog.WithTimeout(cfg.Dialog.Timeout),
		dialog.WithRetry(cfg.Dialog.MaxRetries, time.Second),
		dialog.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("dialog engine: %w", err)
	}
	defer engine.Close()

	var searcher dialog.Searcher
	if cfg.Search.APIKey != "" && cfg.Search.EngineID != "" {
		g, err := search.NewGoogle(ctx, cfg.Search.APIKey, cfg.Search.EngineID, logger)
		if err != nil {
			logger.Warn("search disabled", "error", err)
		} else {
			searcher = g
		}
	}
	responder := dialog.NewResponder(kb, engine, queue, routines, searcher, logger)

	// Speech synthesis.
	synthesizer, err := tts.NewAzure(tts.AzureConfig{
		Endpoint:  cfg.TTS.Endpoint,
		APIKey:    cfg.TTS.APIKey,
		Voice:     cfg.TTS.Voice,
		OutputDir: cfg.TTS.OutputDir,
		Timeout:   cfg.TTS.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("speech synthesis: %w", err)
	}

	// Browser event hub, camera frames, and chat transcript.
	events := hub.New(logger)
	transcript := history.NewLog(cfg.Server.HistoryFile, logger)

	queue.OnDispatched = func(cmd actions.Command) {
		events.Emit("action_dispatched", map[string]any{
			"action": actions.ActionName(cmd.ActionID),
			"repeat": cmd.RepeatCount,
		})
	}
	queue.OnError = func(cmd actions.Command, err error) {
		events.Emit("action_failed", map[string]any{
			"action": actions.ActionName(cmd.ActionID),
			"error":  err.Error(),
		})
	}

	var analyzer phone.VisionAnalyzer
	if describer, err := newDescriber(cfg.Vision, logger); err != nil {
		logger.Warn("vision disabled", "error", err)
	} else if describer != nil {
		analyzer = vision.NewAnalyzer(describer, events, queue, logger)
	}

	// The conversation loop.
	timing := phone.Timing{PacingMargin: cfg.Phone.PacingMargin}
	pipeline := phone.NewTurnPipeline(selector, responder, analyzer, synthesizer,
		transcriptSink{transcript}, events, timing, logger)
	controller := phone.NewController(recorder, pipeline, events, timing, logger)
	controller.Cues = cue.NewTonePlayer(logger)
	recorder.OnSpeechDetected = func() {
		events.Emit("speech_detected", nil)
	}
	defer controller.Close()

	server := web.NewServer(web.Config{
		Port:      cfg.Server.Port,
		StaticDir: cfg.TTS.OutputDir,
	}, controller, queue, selector, transcript, events, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		events.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := server.Listen(); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		controller.Close()
		return server.Shutdown()
	})

	logger.Info("raspbot ready",
		"port", cfg.Server.Port,
		"audio_backend", cfg.Audio.Backend,
		"vad_backend", cfg.VAD.Backend,
		"stt_mode", cfg.STT.Mode,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newDescriber builds the configured vision backend. Returns nil with
// no error when vision is not configured.
func newDescriber(cfg config.Vision, logger *slog.Logger) (vision.Describer, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return vision.NewGemini(cfg.APIKey, cfg.Model, logger)
	default:
		if cfg.BaseURL == "" || cfg.Model == "" {
			return nil, nil
		}
		return vision.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, logger)
	}
}

// sttFactory builds the transcription backend for a mode from config.
func sttFactory(cfg *config.Config, logger *slog.Logger) stt.Factory {
	return func(mode stt.Mode) (stt.Transcriber, error) {
		switch mode {
		case stt.ModeLocal:
			return stt.NewWhisper(cfg.STT.LocalModelPath, cfg.STT.Language, logger)
		case stt.ModeCloud:
			var opts []stt.CloudOption
			if cfg.STT.CloudEndpoint != "" {
				opts = append(opts, stt.WithCloudEndpoint(cfg.STT.CloudEndpoint))
			}
			if cfg.STT.CloudDeployment != "" {
				opts = append(opts, stt.WithCloudModel(cfg.STT.CloudDeployment))
			}
			return stt.NewCloud(cfg.STT.CloudAPIKey, cfg.STT.Language, logger, opts...)
		default:
			return nil, fmt.Errorf("unknown transcription mode %q", mode)
		}
	}
}

// transcriptSink records completed turns into the chat transcript.
type transcriptSink struct {
	log *history.Log
}

func (s transcriptSink) RecordTurn(turn phone.Turn) {
	s.log.Append(history.TypeSent, turn.UserText, "")
	s.log.Append(history.TypeReceived, turn.AssistantText, turn.AudioRef)
}
