package alert

// Status is the aggregate health state of a service as computed by the
// host monitoring system.
type Status string

const (
	StatusPassing  Status = "PASSING"
	StatusWarning  Status = "WARNING"
	StatusError    Status = "ERROR"
	StatusCritical Status = "CRITICAL"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPassing, StatusWarning, StatusError, StatusCritical:
		return true
	}
	return false
}

// statusEmojis and statusColors are fixed per-status lookup tables used by
// the renderer and the post attachment.
var statusEmojis = map[Status]string{
	StatusWarning:  ":thinking_face:",
	StatusError:    ":x:",
	StatusCritical: ":rotating_light:",
	StatusPassing:  ":white_check_mark:",
}

var statusColors = map[Status]string{
	StatusWarning:  "#FFFF00",
	StatusError:    "#FF0000",
	StatusCritical: "#FF0000",
	StatusPassing:  "#00FF00",
}

// Emoji returns the emoji shortcode for a status.
func (s Status) Emoji() string { return statusEmojis[s] }

// Color returns the attachment sidebar color for a status.
func (s Status) Color() string { return statusColors[s] }
