package alert

import (
	"strings"
	"testing"
)

func TestRenderAlertBody(t *testing.T) {
	event := StatusEvent{
		Service:    "Service",
		ServiceURL: "http://localhost/service/2194/",
		Current:    StatusError,
		Previous:   StatusPassing,
		FailingChecks: []CheckResult{
			{Name: "ES Metric Check", DetailURL: "http://localhost/check/10104/"},
		},
	}

	msg := Render(event, RenderOptions{
		Aliases: []string{"testuser_alias"},
		Mention: true,
	})

	want := "### Service\n" +
		"**[Service](http://localhost/service/2194/) is reporting ERROR** :x:\n" +
		"\n##### Failing checks\n" +
		"* [ES Metric Check](http://localhost/check/10104/) - \n" +
		"\n @testuser_alias :point_up:\n"
	if msg.Body != want {
		t.Errorf("body mismatch\ngot:\n%q\nwant:\n%q", msg.Body, want)
	}
	if msg.Title != "Service is ERROR" {
		t.Errorf("title = %q, want %q", msg.Title, "Service is ERROR")
	}
	if msg.Color != "#FF0000" {
		t.Errorf("color = %q, want #FF0000", msg.Color)
	}
}

func TestRenderConsoleCheckLink(t *testing.T) {
	event := StatusEvent{
		Service:    "Builds",
		ServiceURL: "http://localhost/service/7/",
		Current:    StatusCritical,
		Previous:   StatusPassing,
		FailingChecks: []CheckResult{
			{Name: "deploy-prod", Category: CategoryConsole, RunNumber: 42, Error: "exit 1"},
		},
	}

	msg := Render(event, RenderOptions{ConsoleBaseURL: "https://ci.example.com/"})

	wantLine := "* [deploy-prod](https://ci.example.com/job/deploy-prod/42/console) exit 1\n"
	if !strings.Contains(msg.Body, wantLine) {
		t.Errorf("body missing console link line %q:\n%s", wantLine, msg.Body)
	}
	if strings.Contains(msg.Body, ":point_up:") {
		t.Errorf("mention block rendered without mention flag:\n%s", msg.Body)
	}
}

func TestRenderNormalBody(t *testing.T) {
	event := StatusEvent{
		Service:    "Service",
		ServiceURL: "http://localhost/service/2194/",
		Current:    StatusPassing,
		Previous:   StatusError,
	}

	msg := Render(event, RenderOptions{
		Aliases: []string{"alice", "bob"},
		Mention: true,
	})

	want := "### Service\n" +
		"[Service](http://localhost/service/2194/) is back to normal :white_check_mark:\n" +
		"\n @alice @bob :point_up:\n"
	if msg.Body != want {
		t.Errorf("body mismatch\ngot:\n%q\nwant:\n%q", msg.Body, want)
	}
	if msg.Color != "#00FF00" {
		t.Errorf("color = %q, want #00FF00", msg.Color)
	}
}

func TestRenderSkipsUnsafeAliases(t *testing.T) {
	event := StatusEvent{
		Service:    "Service",
		ServiceURL: "http://localhost/service/1/",
		Current:    StatusPassing,
		Previous:   StatusError,
	}

	msg := Render(event, RenderOptions{
		Aliases: []string{"@already", "has space", "good"},
		Mention: true,
	})

	if len(msg.Mentions) != 1 || msg.Mentions[0] != "good" {
		t.Errorf("mentions = %v, want [good]", msg.Mentions)
	}
	if strings.Contains(msg.Body, "@@already") || strings.Contains(msg.Body, "has space") {
		t.Errorf("unsafe alias leaked into body:\n%s", msg.Body)
	}
}

func TestRenderUnconfiguredCallout(t *testing.T) {
	event := StatusEvent{
		Service:    "Service",
		ServiceURL: "http://localhost/service/1/",
		Current:    StatusError,
		Previous:   StatusPassing,
	}

	msg := Render(event, RenderOptions{
		Aliases:      []string{"alice"},
		Unconfigured: []string{"dolores@example.com"},
		Mention:      true,
	})
	if !strings.Contains(msg.Body, "Someone tell dolores@example.com to set their chat alias! :angry:") {
		t.Errorf("missing unconfigured call-out:\n%s", msg.Body)
	}

	// Suppressed along with the mention block.
	quiet := Render(event, RenderOptions{
		Aliases:      []string{"alice"},
		Unconfigured: []string{"dolores@example.com"},
		Mention:      false,
	})
	if strings.Contains(quiet.Body, ":angry:") {
		t.Errorf("call-out rendered while mentions suppressed:\n%s", quiet.Body)
	}
}
