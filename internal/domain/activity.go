package domain

// Activity types and event names used by the Bot API.
const (
	ActivityTypeMessage = "message"
	ActivityTypeEvent   = "event"

	EventNameStart = "start"
)

// Activity is a single Bot API activity, inbound or outbound. Unknown fields
// are accepted so protocol extensions from the call-control side pass through.
type Activity struct {
	_          struct{}       `json:"-" additionalProperties:"true"`
	ID         string         `json:"id,omitempty" doc:"Activity ID"`
	Timestamp  string         `json:"timestamp,omitempty" doc:"ISO-8601 timestamp"`
	Type       string         `json:"type,omitempty" doc:"Activity type (message, event)"`
	Name       string         `json:"name,omitempty" doc:"Event name for event activities"`
	Text       string         `json:"text,omitempty" doc:"Message text"`
	Parameters map[string]any `json:"parameters,omitempty" doc:"Event parameters"`
}

// Param returns the named parameter when it is a non-empty string.
func (a Activity) Param(key string) (string, bool) {
	v, ok := a.Parameters[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
