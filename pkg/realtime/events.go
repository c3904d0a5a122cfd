package realtime

// Event is one wire event, client or server. Events keep their raw
// map shape because the protocol is additive and we only pick out the
// fields we track.
type Event map[string]any

// Type returns the event type string.
func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

// Str returns a top-level string field.
func (e Event) Str(key string) string {
	s, _ := e[key].(string)
	return s
}

// Int returns a top-level numeric field.
func (e Event) Int(key string) int {
	switch v := e[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Object returns a top-level object field.
func (e Event) Object(key string) map[string]any {
	m, _ := e[key].(map[string]any)
	return m
}

// Client event types.
const (
	EventSessionUpdate          = "session.update"
	EventConversationItemCreate = "conversation.item.create"
	EventConversationItemDelete = "conversation.item.delete"
	EventItemTruncate           = "conversation.item.truncate"
	EventInputAudioAppend       = "input_audio_buffer.append"
	EventInputAudioCommit       = "input_audio_buffer.commit"
	EventResponseCreate         = "response.create"
	EventResponseCancel         = "response.cancel"
)

// Server event types the conversation tracker consumes.
const (
	EventSessionCreated         = "session.created"
	EventItemCreated            = "conversation.item.created"
	EventItemTruncated          = "conversation.item.truncated"
	EventItemDeleted            = "conversation.item.deleted"
	EventInputTranscriptDone    = "conversation.item.input_audio_transcription.completed"
	EventSpeechStarted          = "input_audio_buffer.speech_started"
	EventSpeechStopped          = "input_audio_buffer.speech_stopped"
	EventResponseCreated        = "response.created"
	EventOutputItemAdded        = "response.output_item.added"
	EventOutputItemDone         = "response.output_item.done"
	EventContentPartAdded       = "response.content_part.added"
	EventAudioTranscriptDelta   = "response.audio_transcript.delta"
	EventAudioDelta             = "response.audio.delta"
	EventTextDelta              = "response.text.delta"
	EventFunctionCallArgsDelta  = "response.function_call_arguments.delta"
)
