package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonRealtimeConnect ReasonCode = "realtime_connect"
	ReasonRealtimeSend    ReasonCode = "realtime_send"
	ReasonRealtimeEvent   ReasonCode = "realtime_event"

	ReasonToolUnknown     ReasonCode = "tool_unknown"
	ReasonToolInvalidArgs ReasonCode = "tool_invalid_args"
	ReasonToolExecution   ReasonCode = "tool_execution"

	ReasonProviderRequest   ReasonCode = "provider_request"
	ReasonProviderRateLimit ReasonCode = "provider_rate_limit"
	ReasonProviderDecode    ReasonCode = "provider_decode"

	ReasonTransportSend ReasonCode = "transport_send"
)
