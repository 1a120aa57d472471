package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oncallhq/mattersend/internal/alert"
	"github.com/oncallhq/mattersend/internal/alias"
	"github.com/oncallhq/mattersend/internal/config"
	"github.com/oncallhq/mattersend/internal/mattermost"
	"github.com/oncallhq/mattersend/internal/metrics"
)

// ErrConfiguration marks dispatches rejected before any network call:
// no usable chat instance, or no resolvable channel.
var ErrConfiguration = errors.New("notification target not configured")

// ChatClient is the slice of the Mattermost API the dispatcher needs.
type ChatClient interface {
	UsersByUsernames(ctx context.Context, usernames []string) ([]mattermost.User, error)
	AddChannelMember(ctx context.Context, channelID, userID string) error
	UploadFiles(ctx context.Context, channelID string, files []mattermost.File) ([]string, error)
	CreatePost(ctx context.Context, channelID string, fileIDs []string, attachment mattermost.Attachment) error
}

// Outcome reports how a best-effort pipeline step finished. Degraded steps
// reduce the richness of the notification (mentions, images) but never
// block it.
type Outcome struct {
	Degraded bool
	Reason   string
}

func stepOK() Outcome { return Outcome{} }

func stepDegraded(reason string) Outcome { return Outcome{Degraded: true, Reason: reason} }

// Dispatcher runs the notification pipeline for status events. Each
// dispatch is independent and synchronous; ordering and retries are the
// caller's concern.
type Dispatcher struct {
	cfg     *config.Config
	aliases *alias.Store

	// newClient is swapped by tests.
	newClient func(serverURL, token string) ChatClient
}

// New creates a Dispatcher over the given config and alias directory.
func New(cfg *config.Config, aliases *alias.Store) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		aliases: aliases,
		newClient: func(serverURL, token string) ChatClient {
			return mattermost.NewClient(serverURL, token)
		},
	}
}

// Dispatch delivers one status transition. The pipeline is
// resolve target -> policy -> render -> sync members (best-effort) ->
// upload images (best-effort) -> post (hard-fail). Only the final post
// can return a delivery error; configuration problems are reported before
// any network I/O as ErrConfiguration.
func (d *Dispatcher) Dispatch(ctx context.Context, event alert.StatusEvent, responders, dutyOfficers []string) error {
	start := time.Now()
	log := slog.With(
		"delivery_id", uuid.NewString(),
		"service", event.Service,
		"current", event.Current,
		"previous", event.Previous,
	)

	instance, ok := d.cfg.Instance(event.Instance)
	if !ok {
		metrics.ObserveDispatch(time.Since(start), metrics.OutcomeConfigError)
		return fmt.Errorf("%w: no chat instance for service %q", ErrConfiguration, event.Service)
	}
	channelID := event.ChannelID
	if channelID == "" {
		channelID = instance.DefaultChannelID
	}
	if channelID == "" {
		metrics.ObserveDispatch(time.Since(start), metrics.OutcomeConfigError)
		return fmt.Errorf("%w: no channel id for service %q", ErrConfiguration, event.Service)
	}

	mention := alert.ShouldMention(event.Previous, event.Current)

	aliases, unconfigured := d.resolveAliases(ctx, log, responders, dutyOfficers)

	msg := alert.Render(event, alert.RenderOptions{
		Aliases:        aliases,
		Unconfigured:   unconfigured,
		Mention:        mention,
		ConsoleBaseURL: d.cfg.ConsoleBaseURL,
	})

	client := d.newClient(instance.ServerURL, instance.APIToken)

	botUsername := event.BotUsername
	if botUsername == "" {
		botUsername = d.cfg.BotUsername
	}
	if outcome := d.syncMembers(ctx, client, channelID, append(msg.Mentions, botUsername)); outcome.Degraded {
		log.Warn("channel membership sync degraded", "reason", outcome.Reason)
		metrics.ObserveDegradedStep("member_sync")
	}

	fileIDs, outcome := d.uploadImages(ctx, client, channelID, event.FailingChecks)
	if outcome.Degraded {
		log.Warn("image upload degraded", "reason", outcome.Reason)
		metrics.ObserveDegradedStep("upload")
	}

	err := client.CreatePost(ctx, channelID, fileIDs, mattermost.Attachment{
		Fallback: msg.Title,
		Color:    msg.Color,
		Text:     msg.Body,
	})
	if err != nil {
		metrics.ObserveDispatch(time.Since(start), metrics.OutcomeFailed)
		return fmt.Errorf("post status message: %w", err)
	}

	log.Info("status notification delivered",
		"channel_id", channelID,
		"mention", mention,
		"mentioned", len(msg.Mentions),
		"files", len(fileIDs),
	)
	metrics.ObserveDispatch(time.Since(start), metrics.OutcomeDelivered)
	return nil
}

// resolveAliases maps the union of responders and duty officers to chat
// aliases, preserving order and dropping duplicates. A directory failure
// only costs the mentions, never the message.
func (d *Dispatcher) resolveAliases(ctx context.Context, log *slog.Logger, responders, dutyOfficers []string) (aliases, unconfigured []string) {
	seen := make(map[string]bool, len(responders)+len(dutyOfficers))
	users := make([]string, 0, len(responders)+len(dutyOfficers))
	for _, u := range append(append([]string{}, responders...), dutyOfficers...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}

	aliases, unconfigured, err := d.aliases.Resolve(ctx, users)
	if err != nil {
		log.Warn("alias resolution failed, sending without mentions", "error", err)
		return nil, nil
	}
	return aliases, unconfigured
}

// syncMembers ensures the mentioned users and the bot are channel members.
// Usernames unknown to the platform are silently dropped by the lookup;
// individual add failures (permissions, already a member) are tolerated.
func (d *Dispatcher) syncMembers(ctx context.Context, client ChatClient, channelID string, usernames []string) Outcome {
	users, err := client.UsersByUsernames(ctx, usernames)
	if err != nil {
		return stepDegraded(fmt.Sprintf("username lookup failed: %v", err))
	}

	failed := 0
	for _, user := range users {
		if err := client.AddChannelMember(ctx, channelID, user.ID); err != nil {
			slog.Warn("could not add user to channel",
				"channel_id", channelID,
				"username", user.Username,
				"error", err,
			)
			failed++
		}
	}
	if failed > 0 {
		return stepDegraded(fmt.Sprintf("%d of %d member adds failed", failed, len(users)))
	}
	return stepOK()
}

// uploadImages pushes the diagnostic images of failing checks in one
// batch. Checks without an image are skipped. Any failure degrades to an
// empty attachment list.
func (d *Dispatcher) uploadImages(ctx context.Context, client ChatClient, channelID string, checks []alert.CheckResult) ([]string, Outcome) {
	var files []mattermost.File
	for _, check := range checks {
		if len(check.Image) == 0 {
			continue
		}
		files = append(files, mattermost.File{
			Name: check.Name + ".png",
			Data: check.Image,
		})
	}

	ids, err := client.UploadFiles(ctx, channelID, files)
	if err != nil {
		return nil, stepDegraded(fmt.Sprintf("upload failed: %v", err))
	}
	return ids, stepOK()
}
