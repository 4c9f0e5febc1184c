// Package bot разбирает обновления Telegram и вызывает операции членства.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/membership"
)

// Команды бота в нижнем регистре.
const (
	CommandStart         = "start"
	CommandRenew         = "renovar"
	CommandApprove       = "aprobar"
	CommandDeny          = "denegar"
	CommandTimeRemaining = "tiemporestante"
	CommandExpiring      = "expiring"
)

const (
	outcomeOK       = "ok"
	outcomeDenied   = "denied"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Membership операции, которые вызывает бот.
type Membership interface {
	IsAdmin(platformID int64) bool
	Register(ctx context.Context, m models.Member) (membership.Outcome, error)
	RequestRenewal(ctx context.Context, m models.Member) membership.Outcome
	Approve(ctx context.Context, caller, target int64) (membership.ApproveResult, error)
	Deny(ctx context.Context, caller, target int64) error
	TimeRemaining(ctx context.Context, m models.Member) (membership.TimeRemainingResult, error)
	ExpiringReport(ctx context.Context, caller int64, days int) ([]models.ExpiringRow, error)
	HandleJoin(ctx context.Context, members []models.Member) []membership.JoinResult
}

// Replier отправка ответа в чат.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error
}

// Router сопоставляет сообщения с командами.
type Router struct {
	svc     Membership
	out     Replier
	groupID int64
	workers int
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRouter создаёт Router. Вступления учитываются только в группе groupID.
func NewRouter(svc Membership, out Replier, groupID int64, workers int, m *metrics.Metrics, log *slog.Logger) *Router {
	if workers <= 0 {
		workers = 1
	}
	return &Router{svc: svc, out: out, groupID: groupID, workers: workers, metrics: m, log: log}
}

// Listen обрабатывает обновления до закрытия канала или отмены ctx.
// Одновременно обрабатывается не больше workers обновлений.
func (r *Router) Listen(ctx context.Context, updates <-chan tgbotapi.Update) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil
		case upd, ok := <-updates:
			if !ok {
				_ = g.Wait()
				return nil
			}
			g.Go(func() error {
				r.HandleUpdate(gctx, upd)
				return nil
			})
		}
	}
}

// HandleUpdate обрабатывает одно обновление.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil {
		return
	}
	if len(msg.NewChatMembers) > 0 {
		r.handleJoin(ctx, msg)
		return
	}
	if !msg.IsCommand() {
		return
	}

	command := strings.ToLower(msg.Command())
	caller := memberFrom(msg.From)
	chatID := msg.Chat.ID
	args := msg.CommandArguments()

	log := r.log.With(slog.String("command", command), sl.UserID(caller.PlatformID))

	var outcome string
	switch command {
	case CommandStart:
		outcome = r.start(ctx, chatID, caller)
	case CommandRenew:
		outcome = r.renew(ctx, chatID, caller)
	case CommandApprove:
		outcome = r.approve(ctx, log, chatID, caller.PlatformID, args)
	case CommandDeny:
		outcome = r.deny(ctx, log, chatID, caller.PlatformID, args)
	case CommandTimeRemaining:
		outcome = r.timeRemaining(ctx, log, chatID, caller)
	case CommandExpiring:
		outcome = r.expiring(ctx, log, chatID, caller.PlatformID, args)
	default:
		return
	}
	r.metrics.Command(command, outcome)
	log.Debug("command handled", slog.String("outcome", outcome))
}

func (r *Router) start(ctx context.Context, chatID int64, caller models.Member) string {
	outcome, err := r.svc.Register(ctx, caller)
	if err != nil {
		r.log.Error("failed to register member", sl.UserID(caller.PlatformID), sl.Err(err))
		r.reply(ctx, chatID, msgInternal, false)
		return outcomeError
	}
	r.replyOutcome(ctx, chatID, outcome)
	return outcomeOK
}

func (r *Router) renew(ctx context.Context, chatID int64, caller models.Member) string {
	r.replyOutcome(ctx, chatID, r.svc.RequestRenewal(ctx, caller))
	return outcomeOK
}

func (r *Router) replyOutcome(ctx context.Context, chatID int64, outcome membership.Outcome) {
	switch outcome {
	case membership.OutcomeAdminHelp:
		r.reply(ctx, chatID, adminHelp, true)
	case membership.OutcomeAlreadyRegistered:
		r.reply(ctx, chatID, msgAlreadyRegistered, false)
	case membership.OutcomePendingReview:
		r.reply(ctx, chatID, msgWelcome, false)
	case membership.OutcomeRenewalRequested:
		r.reply(ctx, chatID, msgRenewal, false)
	}
}

func (r *Router) approve(ctx context.Context, log *slog.Logger, chatID, caller int64, args string) string {
	if !r.svc.IsAdmin(caller) {
		r.reply(ctx, chatID, msgNoApprovePermission, false)
		return outcomeDenied
	}
	target, err := parseTarget(args)
	if err != nil {
		r.reply(ctx, chatID, msgApproveUsage, false)
		return outcomeInvalid
	}

	res, err := r.svc.Approve(ctx, caller, target)
	switch {
	case errors.Is(err, membership.ErrPermissionDenied):
		r.reply(ctx, chatID, msgNoApprovePermission, false)
		return outcomeDenied
	case errors.Is(err, membership.ErrValidation):
		r.reply(ctx, chatID, msgApproveUsage, false)
		return outcomeInvalid
	case err != nil:
		log.Error("failed to approve payment", slog.Int64("target", target), sl.Err(err))
		r.reply(ctx, chatID, msgInternal, false)
		return outcomeError
	}
	r.reply(ctx, chatID, msgApproved(res.PlatformID, calendar.Format(res.PaidUntil)), false)
	return outcomeOK
}

func (r *Router) deny(ctx context.Context, log *slog.Logger, chatID, caller int64, args string) string {
	if !r.svc.IsAdmin(caller) {
		r.reply(ctx, chatID, msgNoDenyPermission, false)
		return outcomeDenied
	}
	target, err := parseTarget(args)
	if err != nil {
		r.reply(ctx, chatID, msgDenyUsage, false)
		return outcomeInvalid
	}

	err = r.svc.Deny(ctx, caller, target)
	switch {
	case errors.Is(err, membership.ErrNotFound):
		r.reply(ctx, chatID, msgDenyNotFound(target), false)
		return outcomeNotFound
	case errors.Is(err, membership.ErrPermissionDenied):
		r.reply(ctx, chatID, msgNoDenyPermission, false)
		return outcomeDenied
	case errors.Is(err, membership.ErrValidation):
		r.reply(ctx, chatID, msgDenyUsage, false)
		return outcomeInvalid
	case err != nil:
		log.Error("failed to deny payment", slog.Int64("target", target), sl.Err(err))
		r.reply(ctx, chatID, msgInternal, false)
		return outcomeError
	}
	r.reply(ctx, chatID, msgDenied(target), false)
	return outcomeOK
}

func (r *Router) timeRemaining(ctx context.Context, log *slog.Logger, chatID int64, caller models.Member) string {
	res, err := r.svc.TimeRemaining(ctx, caller)
	switch {
	case errors.Is(err, membership.ErrNotFound):
		r.reply(ctx, chatID, msgNotRegistered, false)
		return outcomeNotFound
	case err != nil:
		log.Error("failed to check time remaining", sl.Err(err))
		r.reply(ctx, chatID, msgInternal, false)
		return outcomeError
	}
	if res.Removed || res.DaysLeft <= 0 {
		r.reply(ctx, chatID, msgExpired, false)
		return outcomeOK
	}
	r.reply(ctx, chatID, msgDaysLeft(res.DaysLeft), false)
	return outcomeOK
}

func (r *Router) expiring(ctx context.Context, log *slog.Logger, chatID, caller int64, args string) string {
	if !r.svc.IsAdmin(caller) {
		r.reply(ctx, chatID, msgNoPermission, false)
		return outcomeDenied
	}
	days, err := parseDays(args)
	if err != nil {
		r.reply(ctx, chatID, msgExpiringUsage, false)
		return outcomeInvalid
	}

	rows, err := r.svc.ExpiringReport(ctx, caller, days)
	switch {
	case errors.Is(err, membership.ErrPermissionDenied):
		r.reply(ctx, chatID, msgNoPermission, false)
		return outcomeDenied
	case errors.Is(err, membership.ErrValidation):
		r.reply(ctx, chatID, msgExpiringUsage, false)
		return outcomeInvalid
	case err != nil:
		log.Error("failed to build expiring report", sl.Err(err))
		r.reply(ctx, chatID, msgInternal, false)
		return outcomeError
	}

	if len(rows) == 0 {
		r.reply(ctx, chatID, msgNoneExpiring(days), false)
		return outcomeOK
	}
	for _, chunk := range expiringReport(rows) {
		r.reply(ctx, chatID, chunk, true)
	}
	return outcomeOK
}

func (r *Router) handleJoin(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Chat.ID != r.groupID {
		return
	}
	members := make([]models.Member, 0, len(msg.NewChatMembers))
	for i := range msg.NewChatMembers {
		members = append(members, memberFrom(&msg.NewChatMembers[i]))
	}
	for _, res := range r.svc.HandleJoin(ctx, members) {
		r.metrics.Command("join", string(res.Action))
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, markdown bool) {
	if err := r.out.SendMessage(ctx, chatID, text, markdown); err != nil {
		r.log.Error("failed to send reply", slog.Int64("chat_id", chatID), sl.Err(err))
	}
}

func memberFrom(u *tgbotapi.User) models.Member {
	return models.Member{
		PlatformID: u.ID,
		Handle:     u.UserName,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsBot:      u.IsBot,
	}
}
