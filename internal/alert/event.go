package alert

// CheckCategory distinguishes checks whose results live in an external
// console (e.g. a CI job) from generic checks. It only affects the link
// target rendered for a failing check.
type CheckCategory string

const (
	CategoryGeneric CheckCategory = "generic"
	CategoryConsole CheckCategory = "console"
)

// CheckResult describes one failing check attached to a status event.
// Name and Error may contain markdown; they are supplied pre-sanitized by
// the host system and are passed through verbatim.
type CheckResult struct {
	Name      string        `json:"name"`
	DetailURL string        `json:"detail_url"`
	Error     string        `json:"error"`
	Image     []byte        `json:"image,omitempty"`
	Category  CheckCategory `json:"category,omitempty"`
	RunNumber int           `json:"run_number,omitempty"`
}

// StatusEvent is one status transition reported by the host system.
// It is immutable: the dispatcher never mutates it and holds no reference
// after the dispatch returns.
type StatusEvent struct {
	Service       string        `json:"service"`
	ServiceURL    string        `json:"service_url"`
	Current       Status        `json:"current_status"`
	Previous      Status        `json:"previous_status"`
	FailingChecks []CheckResult `json:"failing_checks,omitempty"`

	// Instance optionally names a configured Mattermost instance,
	// overriding the default one.
	Instance string `json:"instance,omitempty"`

	// ChannelID optionally overrides the instance's default channel.
	ChannelID string `json:"channel_id,omitempty"`

	// BotUsername optionally overrides the globally configured bot
	// identity appended to every membership sync.
	BotUsername string `json:"bot_username,omitempty"`
}
