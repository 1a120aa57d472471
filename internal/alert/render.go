package alert

import (
	"fmt"
	"log/slog"
	"strings"
)

// Message is a rendered status notification, ready to be wrapped in a
// chat attachment.
type Message struct {
	Title    string
	Color    string
	Body     string
	Mentions []string
}

// RenderOptions carries the non-event inputs to rendering.
type RenderOptions struct {
	// Aliases are the chat aliases of the responders to mention.
	Aliases []string

	// Unconfigured lists responders that have no alias configured.
	// When mentions fire, a call-out line is appended for each so the
	// gap is visible to the rest of the team.
	Unconfigured []string

	// Mention controls whether the @mention block is appended.
	Mention bool

	// ConsoleBaseURL is the external console root used to build links
	// for checks with CategoryConsole.
	ConsoleBaseURL string
}

// Render builds the notification for a status event. The normal template
// is used when the service is back to PASSING, the alert template
// otherwise. Service- and check-supplied text is passed through verbatim;
// the host system pre-sanitizes it.
func Render(event StatusEvent, opts RenderOptions) Message {
	aliases := safeAliases(opts.Aliases)

	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", event.Service)

	if event.Current == StatusPassing {
		fmt.Fprintf(&b, "[Service](%s) is back to normal %s\n", event.ServiceURL, event.Current.Emoji())
	} else {
		fmt.Fprintf(&b, "**[Service](%s) is reporting %s** %s\n", event.ServiceURL, event.Current, event.Current.Emoji())
		b.WriteString("\n##### Failing checks\n")
		for _, check := range event.FailingChecks {
			writeCheckLine(&b, check, opts.ConsoleBaseURL)
		}
	}

	if opts.Mention {
		if len(aliases) > 0 {
			b.WriteString("\n")
			for _, alias := range aliases {
				b.WriteString(" @")
				b.WriteString(alias)
			}
			b.WriteString(" :point_up:\n")
		}
		for _, user := range opts.Unconfigured {
			fmt.Fprintf(&b, "Someone tell %s to set their chat alias! :angry:\n", user)
		}
	}

	return Message{
		Title:    fmt.Sprintf("%s is %s", event.Service, event.Current),
		Color:    event.Current.Color(),
		Body:     b.String(),
		Mentions: aliases,
	}
}

// writeCheckLine renders one failing check bullet. Console-category checks
// link to the external console job run; everything else links to the
// check's detail page followed by its error text.
func writeCheckLine(b *strings.Builder, check CheckResult, consoleBaseURL string) {
	if check.Category == CategoryConsole && consoleBaseURL != "" {
		base := strings.TrimRight(consoleBaseURL, "/")
		fmt.Fprintf(b, "* [%s](%s/job/%s/%d/console) %s\n", check.Name, base, check.Name, check.RunNumber, check.Error)
		return
	}
	fmt.Fprintf(b, "* [%s](%s) - %s\n", check.Name, check.DetailURL, check.Error)
}

// safeAliases drops aliases that would break the mention block. Write-time
// validation is the primary gate; this is the render-time backstop.
func safeAliases(aliases []string) []string {
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if alias == "" || strings.HasPrefix(alias, "@") || strings.ContainsAny(alias, " \t\n") {
			slog.Warn("skipping unusable alias at render time", "alias", alias)
			continue
		}
		out = append(out, alias)
	}
	return out
}
