package dashscope

// Realtime models.
const (
	ModelQwen3TTSFlashRealtime = "qwen3-tts-flash-realtime"
	ModelQwen3ASRFlashRealtime = "qwen3-asr-flash-realtime"
)

// TTS voices.
const (
	VoiceSunny   = "Sunny"
	VoiceCherry  = "Cherry"
	VoiceChelsie = "Chelsie"
	VoiceEthan   = "Ethan"
)

// Audio formats.
const (
	AudioFormatPCM = "pcm"
	AudioFormatWAV = "wav"
	AudioFormatMP3 = "mp3"
)

// TTS commit modes.
const (
	// ModeServerCommit lets the server decide when buffered text is synthesized.
	ModeServerCommit = "server_commit"
	// ModeCommit synthesizes only on an explicit commit.
	ModeCommit = "commit"
)

// VAD modes.
const (
	VADModeServerVAD = "server_vad"
)

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}
