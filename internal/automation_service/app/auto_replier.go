package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapdesk/golang_services/internal/automation_service/domain"
)

// AutoReplier decides whether automatic replies should fire. It only gates;
// sending and timeline insertion stay with the payload processor so replies
// land after the inbound message row commits.
type AutoReplier struct {
	evaluator *Evaluator
	settings  domain.SettingsRepository
	blacklist domain.BlacklistRepository
	oohLog    domain.OutOfHoursLogRepository
	cooldown  time.Duration
	logger    *slog.Logger
}

func NewAutoReplier(
	evaluator *Evaluator,
	settings domain.SettingsRepository,
	blacklist domain.BlacklistRepository,
	oohLog domain.OutOfHoursLogRepository,
	cooldown time.Duration,
	logger *slog.Logger,
) *AutoReplier {
	return &AutoReplier{
		evaluator: evaluator,
		settings:  settings,
		blacklist: blacklist,
		oohLog:    oohLog,
		cooldown:  cooldown,
		logger:    logger.With("component", "auto_replier"),
	}
}

// OutOfHoursReply returns the out-of-hours reply text when all gates pass:
// automation enabled, phone not blacklisted, business currently closed, and
// the phone outside its cooldown window.
func (a *AutoReplier) OutOfHoursReply(ctx context.Context, phone string, now time.Time) (string, bool, error) {
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load settings: %w", err)
	}
	if !settings.AutomationEnabled || settings.OutOfHoursMessage == "" {
		return "", false, nil
	}

	blacklisted, err := a.blacklist.IsBlacklisted(ctx, phone)
	if err != nil {
		return "", false, fmt.Errorf("blacklist lookup: %w", err)
	}
	if blacklisted {
		a.logger.DebugContext(ctx, "Out-of-hours reply suppressed, phone blacklisted", "phone", phone)
		return "", false, nil
	}

	status, err := a.evaluator.Status(ctx, now)
	if err != nil {
		return "", false, err
	}
	if status.IsOpen {
		return "", false, nil
	}

	lastSent, found, err := a.oohLog.LastSentAt(ctx, phone)
	if err != nil {
		return "", false, fmt.Errorf("out-of-hours log lookup: %w", err)
	}
	if found && now.Sub(lastSent) < a.cooldown {
		a.logger.DebugContext(ctx, "Out-of-hours reply suppressed by cooldown",
			"phone", phone, "last_sent_at", lastSent, "cooldown", a.cooldown)
		return "", false, nil
	}

	return settings.OutOfHoursMessage, true, nil
}

// RecordOutOfHoursReply marks the reply as sent for cooldown tracking.
func (a *AutoReplier) RecordOutOfHoursReply(ctx context.Context, phone string, at time.Time) error {
	return a.oohLog.UpsertLastSent(ctx, phone, at)
}

// WelcomeReply returns the welcome text when automation is enabled, the
// business is open and the ticket has no agent or system message yet. Once
// any such message exists the welcome is suppressed permanently for that
// ticket.
func (a *AutoReplier) WelcomeReply(ctx context.Context, hasAgentOrSystemMessage bool, now time.Time) (string, bool, error) {
	if hasAgentOrSystemMessage {
		return "", false, nil
	}

	settings, err := a.settings.Get(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load settings: %w", err)
	}
	if !settings.AutomationEnabled || settings.WelcomeMessage == "" {
		return "", false, nil
	}

	status, err := a.evaluator.Status(ctx, now)
	if err != nil {
		return "", false, err
	}
	if !status.IsOpen {
		return "", false, nil
	}

	return settings.WelcomeMessage, true, nil
}
