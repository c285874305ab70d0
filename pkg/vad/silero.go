package vad

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vtc-robotics/raspbot/pkg/audioio"
)

const (
	// sileroWindowSamples is the fixed inference window Silero expects
	// at 16kHz.
	sileroWindowSamples = 512
	// sileroContextSamples of the previous window are prepended to
	// each inference input.
	sileroContextSamples = 64
	sileroInputSamples   = sileroContextSamples + sileroWindowSamples
	sileroStateSize      = 2 * 1 * 128
	// sileroResetInterval bounds state drift during long idle periods.
	sileroResetInterval = 5 * time.Second

	// DefaultSileroThreshold is the speech probability above which a
	// window counts as speech.
	DefaultSileroThreshold = 0.5
)

var ortInitOnce sync.Once
var ortInitErr error

func initRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// SileroClassifier runs the Silero VAD ONNX model over incoming chunks.
// Chunks of any size are accepted; samples are buffered into 512-sample
// inference windows and Classify reports the most recent window's
// verdict. Not safe for concurrent use.
type SileroClassifier struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32] // (1, 576)
	state     *ort.Tensor[float32] // (2, 1, 128)
	sr        *ort.Tensor[int64]   // (1,) = 16000
	output    *ort.Tensor[float32] // (1, 1) speech prob
	stateOut  *ort.Tensor[float32] // (2, 1, 128) new state
	threshold float32

	context   [sileroContextSamples]float32
	pending   []float32
	lastProb  float32
	lastReset time.Time
}

// NewSileroClassifier loads the Silero model. libPath locates the ONNX
// Runtime shared library and may be empty if the runtime is already on
// the loader path. A threshold of 0 selects DefaultSileroThreshold.
func NewSileroClassifier(modelPath, libPath string, threshold float64) (*SileroClassifier, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, fmt.Errorf("vad: init onnxruntime: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultSileroThreshold
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, sileroInputSamples), make([]float32, sileroInputSamples))
	if err != nil {
		return nil, fmt.Errorf("vad: input tensor: %w", err)
	}
	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, sileroStateSize))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, fmt.Errorf("vad: state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{16000})
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		return nil, fmt.Errorf("vad: sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		_ = srTensor.Destroy()
		return nil, fmt.Errorf("vad: output tensor: %w", err)
	}
	stateOutTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		_ = srTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, fmt.Errorf("vad: stateN tensor: %w", err)
	}

	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateOutTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = stateTensor.Destroy()
		_ = srTensor.Destroy()
		_ = outputTensor.Destroy()
		_ = stateOutTensor.Destroy()
		return nil, fmt.Errorf("vad: load silero model: %w", err)
	}

	return &SileroClassifier{
		session:   sess,
		input:     inputTensor,
		state:     stateTensor,
		sr:        srTensor,
		output:    outputTensor,
		stateOut:  stateOutTensor,
		threshold: float32(threshold),
		lastReset: time.Now(),
	}, nil
}

// Classify buffers the chunk and runs inference for each complete
// 512-sample window. The verdict reflects the most recent window.
func (s *SileroClassifier) Classify(chunk audioio.Chunk) (bool, error) {
	if time.Since(s.lastReset) >= sileroResetInterval && s.lastProb < s.threshold {
		s.resetState()
	}

	for _, sample := range chunk.Samples {
		s.pending = append(s.pending, float32(sample)/32768.0)
	}

	for len(s.pending) >= sileroWindowSamples {
		prob, err := s.speechProb(s.pending[:sileroWindowSamples])
		if err != nil {
			return false, err
		}
		s.lastProb = prob
		s.pending = append(s.pending[:0], s.pending[sileroWindowSamples:]...)
	}

	return s.lastProb >= s.threshold, nil
}

func (s *SileroClassifier) speechProb(window []float32) (float32, error) {
	inputData := s.input.GetData()
	copy(inputData[:sileroContextSamples], s.context[:])
	copy(inputData[sileroContextSamples:], window)

	copy(s.context[:], inputData[sileroInputSamples-sileroContextSamples:])

	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: silero inference: %w", err)
	}

	prob := s.output.GetData()[0]
	copy(s.state.GetData(), s.stateOut.GetData())
	return prob, nil
}

func (s *SileroClassifier) resetState() {
	for i := range s.context {
		s.context[i] = 0
	}
	s.state.ZeroContents()
	s.pending = s.pending[:0]
	s.lastProb = 0
	s.lastReset = time.Now()
}

// Reset clears model state between capture sessions.
func (s *SileroClassifier) Reset() {
	s.resetState()
}

// Name returns "silero".
func (s *SileroClassifier) Name() string { return "silero" }

// Close destroys the ONNX session and its tensors.
func (s *SileroClassifier) Close() error {
	return s.session.Destroy()
}

// Verify SileroClassifier implements Classifier at compile time.
var _ Classifier = (*SileroClassifier)(nil)
