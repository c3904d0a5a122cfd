package frames

// Meta keys shared across frames. Session-scoped identifiers come first,
// tool call routing second, payload hints last.
const (
	MetaSessionID  = "session_id"
	MetaTraceID    = "trace_id"
	MetaSource     = "source"
	MetaRole       = "role"
	MetaItemID     = "item_id"
	MetaResponseID = "response_id"

	MetaToolCallID = "tool_call_id"
	MetaToolName   = "tool_name"
	MetaToolArgs   = "tool_args"
	MetaToolResult = "tool_result"
	MetaToolStatus = "tool_status"
	MetaToolError  = "tool_error"

	MetaDisplay    = "display"
	MetaMIME       = "mime"
	MetaCaption    = "caption"
	MetaEncoding   = "encoding"
	MetaSampleRate = "sample_rate"
	MetaFinal      = "final"
	MetaEndReason  = "end_reason"
)

// Display hint values carried under MetaDisplay.
const (
	DisplayText  = "text"
	DisplayImage = "image"
	DisplayChart = "chart"
)
