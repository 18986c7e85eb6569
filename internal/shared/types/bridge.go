package types

// Bridge message types. Requests carry a correlation id; the response
// type is always "<request-type>-response" with the same id.
const (
	MsgConfirm         = "extension-confirm"
	MsgConfirmResponse = "extension-confirm-response"
	MsgPrompt          = "extension-prompt"
	MsgPromptResponse  = "extension-prompt-response"
	MsgCloseExtension  = "close-extension"
	MsgAudioState      = "ambient-audio-state"
	MsgOpenCompendium  = "open-compendium-entry"
)

// ResponseType returns the response message type for a request type.
func ResponseType(requestType string) string {
	return requestType + "-response"
}

// Message is the envelope exchanged with extension surfaces over the
// bridge. Type namespaces the message family; ID correlates a dialog
// request with its response. Unused fields are omitted on the wire.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// Routing: the extension id the message belongs to. Set by the host
	// when relaying guest requests; guests never need to supply it.
	Extension string `json:"extension,omitempty"`

	// Confirm dialog fields.
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`

	// Prompt dialog fields.
	Question     string `json:"question,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`

	// Response payload: bool for confirm, string-or-null for prompt
	// (null means cancelled). Not omitted when empty so false and null
	// survive the wire.
	Result interface{} `json:"result"`

	// Domain event fields.
	Entry   string `json:"entry,omitempty"`
	Playing *bool  `json:"playing,omitempty"`
}

// Window channel message types. Commands are "time-manager-<verb>";
// state fan-out uses "state".
const (
	WindowState       = "state"
	TimeManagerPrefix = "time-manager-"

	TimeManagerGetState = TimeManagerPrefix + "get-state"
	TimeManagerAdd      = TimeManagerPrefix + "add"
	TimeManagerRemove   = TimeManagerPrefix + "remove"
	TimeManagerUpdate   = TimeManagerPrefix + "update"
	TimeManagerStart    = TimeManagerPrefix + "start"
	TimeManagerStop     = TimeManagerPrefix + "stop"
	TimeManagerReset    = TimeManagerPrefix + "reset"
)

// WindowMessage rides the cross-window broadcast channel: timer commands
// in, full-state snapshots out. Pointer fields distinguish "absent" from
// zero on update commands.
type WindowMessage struct {
	Type     string      `json:"type"`
	ID       string      `json:"id,omitempty"`
	Name     *string     `json:"name,omitempty"`
	Mode     TimerMode   `json:"mode,omitempty"`
	TargetMs *int64      `json:"targetMs,omitempty"`
	ValueMs  *int64      `json:"valueMs,omitempty"`
	Items    []TimerItem `json:"items,omitempty"`
}
