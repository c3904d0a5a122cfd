package realtime

import (
	"fmt"
	"sync"

	"github.com/rakhadjo/svara/pkg/audio"
)

// Item is one tracked conversation entry: a message, a function call,
// or a function call output.
type Item struct {
	ID     string
	Type   string
	Role   string
	Status string

	// Function call fields.
	CallID    string
	Name      string
	Arguments string

	// Function call output.
	Output string

	Text       string
	Transcript string
	Audio      []byte

	Content []map[string]any
}

// FunctionCall is the completed tool request carried by a function_call item.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// ToolCall extracts the call from a completed function_call item.
func (it *Item) ToolCall() (FunctionCall, bool) {
	if it == nil || it.Type != "function_call" {
		return FunctionCall{}, false
	}
	return FunctionCall{CallID: it.CallID, Name: it.Name, Arguments: it.Arguments}, true
}

// Delta is the incremental change an event applied to an item.
type Delta struct {
	Text       string
	Transcript string
	Arguments  string
	Audio      []byte
}

type speechMark struct {
	startMS int
	endMS   int
	audio   []byte
}

// Conversation tracks items and responses across one session. Events
// must be fed in server order.
type Conversation struct {
	sampleRate int

	mu               sync.Mutex
	items            []*Item
	itemLookup       map[string]*Item
	responseOrder    []string
	responseLookup   map[string]Event
	queuedSpeech     map[string]*speechMark
	queuedTranscript map[string]string
	queuedInputAudio []byte
}

func NewConversation(sampleRate int) *Conversation {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	c := &Conversation{sampleRate: sampleRate}
	c.Clear()
	return c
}

// Clear drops all tracked state.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.itemLookup = make(map[string]*Item)
	c.responseOrder = nil
	c.responseLookup = make(map[string]Event)
	c.queuedSpeech = make(map[string]*speechMark)
	c.queuedTranscript = make(map[string]string)
	c.queuedInputAudio = nil
}

// QueueInputAudio stages the committed input buffer so the next user
// item created by the server picks it up.
func (c *Conversation) QueueInputAudio(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queuedInputAudio = buf
}

// Item returns the tracked item by id.
func (c *Conversation) Item(id string) (*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.itemLookup[id]
	return it, ok
}

// Items returns the items in creation order.
func (c *Conversation) Items() []*Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Item, len(c.items))
	copy(out, c.items)
	return out
}

// ProcessEvent applies one server event. It returns the touched item
// and the delta the event carried, either of which may be nil. Event
// types the tracker does not know are an error.
func (c *Conversation) ProcessEvent(ev Event) (*Item, *Delta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type() {
	case EventItemCreated:
		return c.processItemCreated(ev)
	case EventItemTruncated:
		return c.processItemTruncated(ev)
	case EventItemDeleted:
		return c.processItemDeleted(ev)
	case EventInputTranscriptDone:
		return c.processInputTranscript(ev)
	case EventSpeechStarted:
		c.queuedSpeech[ev.Str("item_id")] = &speechMark{startMS: ev.Int("audio_start_ms")}
		return nil, nil, nil
	case EventSpeechStopped:
		return c.processSpeechStopped(ev, nil)
	case EventResponseCreated:
		return c.processResponseCreated(ev)
	case EventOutputItemAdded:
		return c.processOutputItemAdded(ev)
	case EventOutputItemDone:
		return c.processOutputItemDone(ev)
	case EventContentPartAdded:
		return c.processContentPartAdded(ev)
	case EventAudioTranscriptDelta:
		return c.processTranscriptDelta(ev)
	case EventAudioDelta:
		return c.processAudioDelta(ev)
	case EventTextDelta:
		return c.processTextDelta(ev)
	case EventFunctionCallArgsDelta:
		return c.processFunctionCallArgsDelta(ev)
	}
	return nil, nil, fmt.Errorf("no conversation processor for %q", ev.Type())
}

func (c *Conversation) processItemCreated(ev Event) (*Item, *Delta, error) {
	raw := ev.Object("item")
	id, _ := raw["id"].(string)
	if id == "" {
		return nil, nil, fmt.Errorf("item.created: missing item id")
	}
	if existing, ok := c.itemLookup[id]; ok {
		return existing, nil, nil
	}

	it := &Item{ID: id}
	it.Type, _ = raw["type"].(string)
	it.Role, _ = raw["role"].(string)
	it.CallID, _ = raw["call_id"].(string)
	it.Name, _ = raw["name"].(string)
	it.Arguments, _ = raw["arguments"].(string)

	if content, ok := raw["content"].([]any); ok {
		for _, part := range content {
			p, _ := part.(map[string]any)
			if p == nil {
				continue
			}
			cp := make(map[string]any, len(p))
			for k, v := range p {
				cp[k] = v
			}
			it.Content = append(it.Content, cp)
			if t, _ := p["type"].(string); t == "text" || t == "input_text" {
				text, _ := p["text"].(string)
				it.Text += text
			}
		}
	}

	if mark, ok := c.queuedSpeech[id]; ok && mark.audio != nil {
		it.Audio = mark.audio
		delete(c.queuedSpeech, id)
	}
	if transcript, ok := c.queuedTranscript[id]; ok {
		it.Transcript = transcript
		delete(c.queuedTranscript, id)
	}

	switch it.Type {
	case "message":
		if it.Role == "user" {
			it.Status = "completed"
			if c.queuedInputAudio != nil {
				it.Audio = c.queuedInputAudio
				c.queuedInputAudio = nil
			}
		} else {
			it.Status = "in_progress"
		}
	case "function_call":
		it.Status = "in_progress"
	case "function_call_output":
		it.Status = "completed"
		it.Output, _ = raw["output"].(string)
	}

	c.itemLookup[id] = it
	c.items = append(c.items, it)
	return it, nil, nil
}

func (c *Conversation) processItemTruncated(ev Event) (*Item, *Delta, error) {
	it, ok := c.itemLookup[ev.Str("item_id")]
	if !ok {
		return nil, nil, fmt.Errorf("item.truncated: item %q not found", ev.Str("item_id"))
	}
	end := ev.Int("audio_end_ms") * c.sampleRate / 1000 * 2
	if end < len(it.Audio) {
		it.Audio = it.Audio[:end]
	}
	it.Transcript = ""
	return it, nil, nil
}

func (c *Conversation) processItemDeleted(ev Event) (*Item, *Delta, error) {
	id := ev.Str("item_id")
	it, ok := c.itemLookup[id]
	if !ok {
		return nil, nil, fmt.Errorf("item.deleted: item %q not found", id)
	}
	delete(c.itemLookup, id)
	for i, existing := range c.items {
		if existing.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return it, nil, nil
}

func (c *Conversation) processInputTranscript(ev Event) (*Item, *Delta, error) {
	id := ev.Str("item_id")
	transcript := ev.Str("transcript")
	formatted := transcript
	if formatted == "" {
		formatted = " "
	}
	it, ok := c.itemLookup[id]
	if !ok {
		// Transcription can land before the item does.
		c.queuedTranscript[id] = formatted
		return nil, nil, nil
	}
	idx := ev.Int("content_index")
	if idx >= 0 && idx < len(it.Content) {
		it.Content[idx]["transcript"] = transcript
	}
	it.Transcript = formatted
	return it, &Delta{Transcript: transcript}, nil
}

// ProcessSpeechStopped applies a speech_stopped event, slicing the
// captured segment out of the caller's live input buffer.
func (c *Conversation) ProcessSpeechStopped(ev Event, inputAudio []byte) (*Item, *Delta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processSpeechStopped(ev, inputAudio)
}

func (c *Conversation) processSpeechStopped(ev Event, inputAudio []byte) (*Item, *Delta, error) {
	mark, ok := c.queuedSpeech[ev.Str("item_id")]
	if !ok {
		return nil, nil, nil
	}
	mark.endMS = ev.Int("audio_end_ms")
	if len(inputAudio) > 0 {
		start := mark.startMS * c.sampleRate / 1000 * 2
		end := mark.endMS * c.sampleRate / 1000 * 2
		if start < 0 {
			start = 0
		}
		if end > len(inputAudio) {
			end = len(inputAudio)
		}
		if start < end {
			mark.audio = inputAudio[start:end]
		}
	}
	return nil, nil, nil
}

func (c *Conversation) processResponseCreated(ev Event) (*Item, *Delta, error) {
	resp := ev.Object("response")
	id, _ := resp["id"].(string)
	if id == "" {
		return nil, nil, fmt.Errorf("response.created: missing response id")
	}
	if _, ok := c.responseLookup[id]; !ok {
		c.responseLookup[id] = Event(resp)
		c.responseOrder = append(c.responseOrder, id)
	}
	return nil, nil, nil
}

func (c *Conversation) processOutputItemAdded(ev Event) (*Item, *Delta, error) {
	id := ev.Str("response_id")
	if _, ok := c.responseLookup[id]; !ok {
		return nil, nil, fmt.Errorf("output_item.added: response %q not found", id)
	}
	return nil, nil, nil
}

func (c *Conversation) processOutputItemDone(ev Event) (*Item, *Delta, error) {
	raw := ev.Object("item")
	id, _ := raw["id"].(string)
	it, ok := c.itemLookup[id]
	if !ok {
		return nil, nil, fmt.Errorf("output_item.done: item %q not found", id)
	}
	it.Status, _ = raw["status"].(string)
	if args, ok := raw["arguments"].(string); ok && args != "" {
		it.Arguments = args
	}
	return it, nil, nil
}

func (c *Conversation) processContentPartAdded(ev Event) (*Item, *Delta, error) {
	it, ok := c.itemLookup[ev.Str("item_id")]
	if !ok {
		return nil, nil, fmt.Errorf("content_part.added: item %q not found", ev.Str("item_id"))
	}
	part := ev.Object("part")
	if part != nil {
		it.Content = append(it.Content, part)
	}
	return it, nil, nil
}

func (c *Conversation) processTranscriptDelta(ev Event) (*Item, *Delta, error) {
	it, ok := c.itemLookup[ev.Str("item_id")]
	if !ok {
		return nil, nil, fmt.Errorf("audio_transcript.delta: item %q not found", ev.Str("item_id"))
	}
	delta := ev.Str("delta")
	it.Transcript += delta
	return it, &Delta{Transcript: delta}, nil
}

func (c *Conversation) processAudioDelta(ev Event) (*Item, *Delta, error) {
	it, ok := c.itemLookup[ev.Str("item_id")]
	if !ok {
		// Audio deltas can trail a cancelled item; drop them.
		return nil, nil, nil
	}
	pcm, err := audio.DecodeBase64(ev.Str("delta"))
	if err != nil {
		return nil, nil, fmt.Errorf("audio.delta: %w", err)
	}
	it.Audio = append(it.Audio, pcm...)
	return it, &Delta{Audio: pcm}, nil
}

func (c *Conversation) processTextDelta(ev Event) (*Item, *Delta, error) {
	it, ok := c.itemLookup[ev.Str("item_id")]
	if !ok {
		return nil, nil, fmt.Errorf("text.delta: item %q not found", ev.Str("item_id"))
	}
	delta := ev.Str("delta")
	it.Text += delta
	return it, &Delta{Text: delta}, nil
}

func (c *Conversation) processFunctionCallArgsDelta(ev Event) (*Item, *Delta, error) {
	it, ok := c.itemLookup[ev.Str("item_id")]
	if !ok {
		return nil, nil, fmt.Errorf("function_call_arguments.delta: item %q not found", ev.Str("item_id"))
	}
	delta := ev.Str("delta")
	it.Arguments += delta
	return it, &Delta{Arguments: delta}, nil
}
