package config

// Config is the daemon configuration, loaded from
// ~/.config/tabtalk/config.toml with environment overrides on top.
type Config struct {
	// DataDir overrides the XDG data directory holding the database.
	DataDir string `toml:"data_dir"`

	Audio         AudioConfig               `toml:"audio"`
	Recording     RecordingConfig           `toml:"recording"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	LLM           LLMConfig                 `toml:"llm"`
	Playback      PlaybackConfig            `toml:"playback"`
	Server        ServerConfig              `toml:"server"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Log           LogConfig                 `toml:"log"`
}

// AudioConfig selects and parameterizes the capture source.
type AudioConfig struct {
	Source     string `toml:"source"` // "pipewire" or "websocket"
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	Device     string `toml:"device"` // pipewire target, empty = default
}

type RecordingConfig struct {
	// FlushIntervalSeconds is the chunk cadence. 0 disables timed flushes;
	// audio then persists only when the recording stops.
	FlushIntervalSeconds int `toml:"flush_interval_seconds"`
}

type TranscriptionConfig struct {
	Provider                  string `toml:"provider"` // "openai", "groq" or "deepgram"
	Model                     string `toml:"model"`
	Language                  string `toml:"language"` // ISO 639-1, empty = auto-detect
	SegmentSeconds            int    `toml:"segment_seconds"`
	TargetSampleRate          int    `toml:"target_sample_rate"` // 0 keeps the recording rate
	MinRequestIntervalSeconds int    `toml:"min_request_interval_seconds"`
	Instruction               string `toml:"instruction"`
}

// ProviderConfig holds the API key for one provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

// LLMConfig configures transcript post-processing
type LLMConfig struct {
	Enabled  bool              `toml:"enabled"`
	Provider string            `toml:"provider"`
	Model    string            `toml:"model"`
	Prompts  map[string]string `toml:"prompts"` // name -> instruction, merged over built-ins
}

type PlaybackConfig struct {
	Device string `toml:"device"` // pw-cat target, empty = default
}

// ServerConfig is the loopback HTTP listener carrying metrics, health
// probes and the websocket ingest endpoint.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}
