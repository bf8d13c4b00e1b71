package dashscope

// Client events.
const (
	EventTypeSessionUpdate    = "session.update"
	EventTypeSessionFinish    = "session.finish"
	EventTypeInputTextAppend  = "input_text_buffer.append"
	EventTypeInputTextCommit  = "input_text_buffer.commit"
	EventTypeInputTextClear   = "input_text_buffer.clear"
	EventTypeInputAudioAppend = "input_audio_buffer.append"
	EventTypeInputAudioCommit = "input_audio_buffer.commit"
	EventTypeInputAudioClear  = "input_audio_buffer.clear"
	EventTypeResponseCancel   = "response.cancel"
)

// Server events.
const (
	EventTypeSessionCreated        = "session.created"
	EventTypeSessionUpdated        = "session.updated"
	EventTypeSessionFinished       = "session.finished"
	EventTypeInputSpeechStarted    = "input_audio_buffer.speech_started"
	EventTypeInputSpeechStopped    = "input_audio_buffer.speech_stopped"
	EventTypeInputAudioCommitted   = "input_audio_buffer.committed"
	EventTypeResponseCreated       = "response.created"
	EventTypeResponseAudioDelta    = "response.audio.delta"
	EventTypeResponseAudioDone     = "response.audio.done"
	EventTypeResponseDone          = "response.done"
	EventTypeTranscriptionText     = "conversation.item.input_audio_transcription.text"
	EventTypeTranscriptionComplete = "conversation.item.input_audio_transcription.completed"
	EventTypeTranscriptionFailed   = "conversation.item.input_audio_transcription.failed"
	EventTypeError                 = "error"
)

// Event is one server event of a realtime session. Only the fields relevant
// to its Type are set.
type Event struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// Session is set on session.* events.
	Session *SessionInfo `json:"session,omitempty"`

	// ResponseID and ItemID identify the response and conversation item.
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`

	// Delta is the base64 audio of response.audio.delta.
	Delta string `json:"delta,omitempty"`

	// Audio is Delta decoded.
	Audio []byte `json:"-"`

	// Text is the confirmed prefix of a partial transcription and Stash the
	// still-unstable tail.
	Text  string `json:"text,omitempty"`
	Stash string `json:"stash,omitempty"`

	// Transcript is the final text of a completed transcription.
	Transcript string `json:"transcript,omitempty"`

	// Error is set on error and transcription failure events.
	Error *EventError `json:"error,omitempty"`
}

// Partial returns the full current partial transcription.
func (e *Event) Partial() string {
	return e.Text + e.Stash
}

// SessionInfo is the session object the server echoes back.
type SessionInfo struct {
	ID     string `json:"id,omitempty"`
	Model  string `json:"model,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Format string `json:"response_format,omitempty"`
}

// EventError is the payload of an error event.
type EventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
}

func (e *EventError) toError() *Error {
	code := e.Code
	if code == "" {
		code = e.Type
	}
	return &Error{Code: code, Message: e.Message}
}
