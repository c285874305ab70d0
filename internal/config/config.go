// Package config defines the raspbot configuration file format and loader.
//
// Configuration is read from a YAML file and validated before the
// application starts. Secrets (API keys) can also be supplied through
// environment variables, which take precedence over file values.
package config

import (
	"time"
)

// Config is the root configuration for the raspbot service.
type Config struct {
	Server Server `yaml:"server"`
	Audio  Audio  `yaml:"audio"`
	VAD    VAD    `yaml:"vad"`
	STT    STT    `yaml:"stt"`
	Dialog Dialog `yaml:"dialog"`
	TTS    TTS    `yaml:"tts"`
	Vision Vision `yaml:"vision"`
	Search Search `yaml:"search"`
	Robot  Robot  `yaml:"robot"`
	Phone  Phone  `yaml:"phone"`
}

// Server holds HTTP server and logging settings.
type Server struct {
	Port     string `yaml:"port" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// HistoryFile is the path of the append-only chat log.
	HistoryFile string `yaml:"history_file"`
}

// Audio holds microphone capture settings.
type Audio struct {
	// Backend selects the capture implementation: "malgo" or "mock".
	Backend string `yaml:"backend" validate:"omitempty,oneof=malgo mock"`
	// SampleRate must be 16000 for the VAD and STT backends.
	SampleRate int `yaml:"sample_rate" validate:"required,eq=16000"`
	Channels   int `yaml:"channels" validate:"required,eq=1"`
	// ChunkInterval is the duration of one capture chunk (20-30ms).
	ChunkInterval time.Duration `yaml:"chunk_interval" validate:"required"`
}

// VAD holds speech activity classifier settings.
type VAD struct {
	// Backend selects the classifier: "energy" or "silero".
	Backend string `yaml:"backend" validate:"omitempty,oneof=energy silero"`
	// EnergyThreshold is the RMS level above which a chunk counts as
	// speech (16-bit PCM units, max 32767). Used by the energy backend.
	EnergyThreshold float64 `yaml:"energy_threshold"`
	// ModelPath points at silero_vad.onnx. Used by the silero backend.
	ModelPath string `yaml:"model_path"`
	// RuntimeLibPath locates the ONNX Runtime shared library. Empty
	// means the loader's default search path.
	RuntimeLibPath string `yaml:"runtime_lib_path"`
	// SpeechProbability is the silero decision threshold in [0,1].
	SpeechProbability float32 `yaml:"speech_probability" validate:"gte=0,lte=1"`
}

// STT holds transcription backend settings.
type STT struct {
	// Mode selects the initial backend: "local" or "cloud".
	Mode string `yaml:"mode" validate:"omitempty,oneof=local cloud"`
	// LocalModelPath points at a whisper.cpp ggml model file.
	LocalModelPath string `yaml:"local_model_path"`
	// Language is the BCP-47 language hint (e.g. "zh", "en").
	Language string `yaml:"language"`
	// CloudDeployment is the Azure/OpenAI Whisper deployment name.
	CloudDeployment string `yaml:"cloud_deployment"`
	// CloudEndpoint overrides the API base URL (Azure endpoints).
	CloudEndpoint string `yaml:"cloud_endpoint"`
	// CloudAPIKey authenticates cloud transcription requests.
	// Overridden by RASPBOT_STT_API_KEY.
	CloudAPIKey string `yaml:"cloud_api_key"`
}

// Dialog holds the language-model dialog engine settings.
type Dialog struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Model   string `yaml:"model" validate:"required"`
	// APIKey authenticates dialog requests. Overridden by RASPBOT_DIALOG_API_KEY.
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries" validate:"gte=0,lte=2"`
	Temperature float64       `yaml:"temperature"`
	// KnowledgeBase is the path of the action/QA knowledge base JSON.
	KnowledgeBase string `yaml:"knowledge_base"`
}

// TTS holds speech synthesis settings.
type TTS struct {
	// Endpoint is the Azure Speech REST endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIKey authenticates synthesis requests. Overridden by RASPBOT_TTS_API_KEY.
	APIKey string `yaml:"api_key"`
	// Voice is the synthesis voice name (e.g. "zh-HK-WanLungNeural").
	Voice string `yaml:"voice"`
	// OutputDir is where synthesized WAV artifacts are written.
	OutputDir string `yaml:"output_dir"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Vision holds the external image analysis collaborator settings.
type Vision struct {
	// Provider selects the describer: "openai" (any OpenAI-compatible
	// endpoint) or "gemini".
	Provider string `yaml:"provider" validate:"omitempty,oneof=openai gemini"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// Search holds Google Custom Search collaborator settings.
type Search struct {
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`
}

// Robot holds the physical device command channel settings.
type Robot struct {
	// Endpoint is the device's JSON-RPC HTTP endpoint.
	Endpoint string `yaml:"endpoint" validate:"required,url"`
	// DeviceID is sent with every command.
	DeviceID string `yaml:"device_id" validate:"required"`
	// MinInterval is the minimum delay between dispatched actions.
	MinInterval time.Duration `yaml:"min_interval"`
	// QueueSize bounds the pending action queue.
	QueueSize int `yaml:"queue_size" validate:"gte=0"`
}

// Phone holds the voice interaction loop settings.
type Phone struct {
	// MaxWait is how long to wait for speech before giving up a cycle.
	MaxWait time.Duration `yaml:"max_wait"`
	// TrailingSilence ends the recording once speech has been heard.
	TrailingSilence time.Duration `yaml:"trailing_silence"`
	// HardCeiling caps a single recording regardless of state.
	HardCeiling time.Duration `yaml:"hard_ceiling"`
	// PacingMargin is added to the reply's playback duration before
	// the next capture cycle starts.
	PacingMargin time.Duration `yaml:"pacing_margin"`
}

// Default returns a Config with sensible defaults applied.
// Load starts from this and overlays the YAML file.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:        "8080",
			LogLevel:    "info",
			HistoryFile: "chat_history.json",
		},
		Audio: Audio{
			Backend:       "malgo",
			SampleRate:    16000,
			Channels:      1,
			ChunkInterval: 20 * time.Millisecond,
		},
		VAD: VAD{
			Backend:           "energy",
			EnergyThreshold:   500,
			SpeechProbability: 0.5,
		},
		STT: STT{
			Mode:     "local",
			Language: "zh",
		},
		Dialog: Dialog{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4",
			Timeout:     15 * time.Second,
			MaxRetries:  2,
			Temperature: 0.3,
		},
		TTS: TTS{
			Voice:     "zh-HK-WanLungNeural",
			OutputDir: "static",
			Timeout:   30 * time.Second,
		},
		Vision: Vision{
			Provider: "openai",
		},
		Robot: Robot{
			MinInterval: 4 * time.Second,
			QueueSize:   32,
		},
		Phone: Phone{
			MaxWait:         10 * time.Second,
			TrailingSilence: 5 * time.Second,
			HardCeiling:     60 * time.Second,
			PacingMargin:    5 * time.Second,
		},
	}
}
