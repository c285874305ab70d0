package phone

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vtc-robotics/raspbot/pkg/capture"
	"github.com/vtc-robotics/raspbot/pkg/vision"
)

// TurnPipeline turns one finished recording into at most one assistant
// turn and computes the delay before the next capture cycle. Every
// failure degrades to a delay; nothing here stops the loop.
type TurnPipeline struct {
	stt      Transcriber
	dialog   Dialog
	vision   VisionAnalyzer
	tts      Synthesizer
	sink     TurnSink
	notifier Notifier
	timing   Timing
	logger   *slog.Logger
}

// NewTurnPipeline wires the pipeline. vision, sink, and notifier may
// be nil.
func NewTurnPipeline(stt Transcriber, dialog Dialog, visionAnalyzer VisionAnalyzer, synthesizer Synthesizer, sink TurnSink, notifier Notifier, timing Timing, logger *slog.Logger) *TurnPipeline {
	if sink == nil {
		sink = noopSink{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnPipeline{
		stt:      stt,
		dialog:   dialog,
		vision:   visionAnalyzer,
		tts:      synthesizer,
		sink:     sink,
		notifier: notifier,
		timing:   timing.withDefaults(),
		logger:   logger.With("component", "phone.pipeline"),
	}
}

// ProcessTurn runs one turn and returns how long the caller must wait
// before starting the next capture cycle.
func (p *TurnPipeline) ProcessTurn(ctx context.Context, rec *capture.Recording) time.Duration {
	text, err := p.stt.Transcribe(ctx, rec)
	if err != nil {
		p.logger.Warn("transcription failed, restarting cycle", "error", err)
		p.notifier.Emit("cycle_restart", map[string]string{"reason": "transcription_failed"})
		return p.timing.RestartDelay
	}
	text = strings.TrimSpace(text)
	if text == "" {
		p.logger.Debug("empty transcript, restarting cycle")
		p.notifier.Emit("cycle_restart", map[string]string{"reason": "empty_transcript"})
		return p.timing.RestartDelay
	}

	p.logger.Info("utterance transcribed", "text", text)
	p.notifier.Emit("speech_transcribed", map[string]string{"text": text})

	if p.vision != nil && vision.ShouldTrigger(text) {
		return p.visionTurn(ctx, text)
	}

	reply, err := p.dialog.Respond(ctx, text)
	if err != nil {
		p.logger.Warn("dialog failed, restarting cycle", "error", err)
		p.notifier.Emit("cycle_restart", map[string]string{"reason": "dialog_failed"})
		return p.timing.RestartDelay
	}

	result, err := p.tts.Synthesize(ctx, reply)
	if err != nil || result == nil || len(result.Audio) == 0 {
		p.logger.Warn("synthesis failed, using default wait", "error", err)
		p.recordTurn(text, reply, "")
		return p.timing.DefaultWait
	}

	p.recordTurn(text, reply, result.URL)

	if result.Duration <= 0 {
		return p.timing.DefaultWait
	}
	return result.Duration + p.timing.PacingMargin
}

// visionTurn answers a "what do you see" question. The description is
// spoken by the vision path, so the wait is a fixed bound rather than
// a playback duration.
func (p *TurnPipeline) visionTurn(ctx context.Context, text string) time.Duration {
	description, err := p.vision.Analyze(ctx)
	if err != nil {
		p.logger.Warn("vision analysis failed", "error", err)
		p.notifier.Emit("cycle_restart", map[string]string{"reason": "vision_failed"})
		return p.timing.RestartDelay
	}

	p.recordTurn(text, description, "")
	return p.timing.VisionDelay
}

func (p *TurnPipeline) recordTurn(userText, assistantText, audioRef string) {
	p.sink.RecordTurn(Turn{
		UserText:      userText,
		AssistantText: assistantText,
		AudioRef:      audioRef,
		Timestamp:     time.Now(),
	})
	p.notifier.Emit("turn_response", map[string]string{
		"text":  assistantText,
		"audio": audioRef,
	})
}
