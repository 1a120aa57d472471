package alert

// ShouldMention decides whether a status transition pages the responders.
// A status message is composed and posted for every transition; this only
// gates the @mention block appended to it.
//
// Rules:
//   - WARNING never pages.
//   - ERROR pages unless the service was already in ERROR.
//   - CRITICAL always pages.
//   - PASSING pages as a recovery notice, unless recovering from WARNING.
func ShouldMention(previous, current Status) bool {
	switch current {
	case StatusWarning:
		return false
	case StatusError:
		return previous != StatusError
	case StatusCritical:
		return true
	case StatusPassing:
		return previous != StatusWarning
	}
	return false
}
