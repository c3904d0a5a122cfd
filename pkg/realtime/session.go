package realtime

// SessionConfig is the session.update payload. Zero values fall back
// to the defaults in DefaultSessionConfig.
type SessionConfig struct {
	Modalities              []string
	Instructions            string
	Voice                   string
	InputAudioFormat        string
	OutputAudioFormat       string
	InputAudioTranscription map[string]any
	TurnDetection           map[string]any
	ToolChoice              string
	Temperature             float64
	MaxResponseOutputTokens int
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Modalities:              []string{"text", "audio"},
		Voice:                   "shimmer",
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: map[string]any{"model": "whisper-1"},
		TurnDetection:           map[string]any{"type": "server_vad"},
		ToolChoice:              "auto",
		Temperature:             0.8,
		MaxResponseOutputTokens: 4096,
	}
}

// TurnDetectionType returns the configured detection mode, empty when
// turn detection is disabled.
func (c SessionConfig) TurnDetectionType() string {
	if c.TurnDetection == nil {
		return ""
	}
	t, _ := c.TurnDetection["type"].(string)
	return t
}

func (c SessionConfig) payload(toolDescriptors []map[string]any) map[string]any {
	session := map[string]any{
		"modalities":                 c.Modalities,
		"instructions":               c.Instructions,
		"voice":                      c.Voice,
		"input_audio_format":         c.InputAudioFormat,
		"output_audio_format":        c.OutputAudioFormat,
		"input_audio_transcription":  c.InputAudioTranscription,
		"tool_choice":                c.ToolChoice,
		"temperature":                c.Temperature,
		"max_response_output_tokens": c.MaxResponseOutputTokens,
	}
	if c.TurnDetection != nil {
		session["turn_detection"] = c.TurnDetection
	}
	if toolDescriptors == nil {
		toolDescriptors = []map[string]any{}
	}
	session["tools"] = toolDescriptors
	return session
}
