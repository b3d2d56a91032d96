// Package bot routes inbound chat updates to the lifecycle engine, the
// clarification relay and the dialogue flows.
package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/action"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/flow"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/observability"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/service"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

const userGuide = "👋 Добро пожаловать в бота поддержки!\n\n" +
	"Как пользоваться:\n" +
	"1) Зарегистрируйтесь: укажите ФИО, рабочий телефон для связи и организацию.\n" +
	"2) В главном меню выберите тип заявки: ИТ или АХО.\n" +
	"3) Опишите проблему, при необходимости приложите фото и выберите срочность.\n" +
	"4) Мы будем оповещать вас об изменениях заявки в этом чате.\n" +
	"5) Используйте кнопку «Мои заявки», чтобы посмотреть историю и детали обращений."

// Config wires the router.
type Config struct {
	Lifecycle    *service.LifecycleService
	Clarify      *service.ClarificationService
	Users        *service.UserService
	Runner       *flow.Runner
	Registration *flow.Flow
	Intake       *flow.Flow
	Sessions     session.Store
	Notifier     transport.Notifier
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	BotID        int64
	PortalURL    string
}

// Router handles one update at a time.
type Router struct {
	Config
}

// NewRouter creates a Router.
func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Router{Config: cfg}
}

// Run consumes updates in arrival order until ctx is done or updates is closed.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.Handle(ctx, u)
		}
	}
}

// Handle processes a single update. Failures are reported to the sender.
func (r *Router) Handle(ctx context.Context, u transport.Update) {
	var err error
	kind := "message"
	if u.IsCallback() {
		kind = "callback"
		err = r.handleCallback(ctx, u)
		if answerErr := r.Notifier.AnswerCallback(ctx, u.CallbackID, ""); answerErr != nil {
			r.Logger.Debug("answer callback", zap.Error(answerErr))
		}
	} else {
		err = r.handleMessage(ctx, u)
	}
	if err != nil {
		r.report(ctx, u, kind, err)
	}
}

func (r *Router) report(ctx context.Context, u transport.Update, kind string, err error) {
	domainErr := apperrors.ToDomainError(err)
	r.Metrics.RecordError("bot", kind, domainErr.Code)
	fields := []zap.Field{
		zap.Int64("user_id", u.UserID),
		zap.String("kind", kind),
		zap.String("code", domainErr.Code),
		zap.Error(err),
	}
	if domainErr.Code == apperrors.CodeInternal {
		r.Logger.Error("update failed", fields...)
	} else {
		r.Logger.Info("update rejected", fields...)
	}
	if _, sendErr := r.Notifier.SendText(ctx, u.ChatID, domainErr.Message, nil); sendErr != nil {
		r.Logger.Warn("report error to user", zap.Int64("chat_id", u.ChatID), zap.Error(sendErr))
	}
}

func (r *Router) key(userID int64) session.Key {
	return session.PrivateKey(r.BotID, userID)
}

func (r *Router) handleMessage(ctx context.Context, u transport.Update) error {
	text := strings.TrimSpace(u.Text)
	if text == "/start" {
		return r.start(ctx, u)
	}

	state, err := r.Sessions.Get(ctx, r.key(u.UserID))
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	switch {
	case state.Stage.IsClarification():
		side := service.SideUser
		if state.Stage == session.StageAdminClarification {
			side = service.SideAdmin
		}
		if text == service.MenuEndClarify && u.Attachment == nil {
			_, err := r.Lifecycle.EndClarification(ctx, service.Actor{ID: u.UserID, Side: side}, state.Data.RequestID)
			return err
		}
		return r.Clarify.Relay(ctx, r.key(u.UserID), service.Message{Text: u.Text, Attachment: u.Attachment})
	case state.Stage == session.StageWaitingForFeedback:
		_, err := r.Lifecycle.Complete(ctx, u.UserID, 0, &service.Feedback{Text: u.Text, Attachment: u.Attachment})
		return err
	case r.Registration.Owns(state.Stage):
		return r.Runner.Handle(ctx, r.Registration, u.UserID, flow.Input{Text: u.Text, Attachment: u.Attachment})
	case r.Intake.Owns(state.Stage) && !isMenuCommand(text):
		return r.Runner.Handle(ctx, r.Intake, u.UserID, flow.Input{Text: u.Text, Attachment: u.Attachment})
	}

	if r.Intake.Owns(state.Stage) {
		// A menu button abandons the unfinished request.
		if err := r.Sessions.Clear(ctx, r.key(u.UserID)); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	return r.menu(ctx, u, text)
}

func isMenuCommand(text string) bool {
	switch text {
	case service.MenuCreateIT, service.MenuCreateAHO, service.MenuMyRequests,
		service.MenuAcceptedByMe, service.MenuNewRequests, service.MenuPortal:
		return true
	}
	return false
}

func (r *Router) start(ctx context.Context, u transport.Update) error {
	state, err := r.Sessions.Get(ctx, r.key(u.UserID))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if state.Stage.IsClarification() {
		side := service.SideUser
		if state.Stage == session.StageAdminClarification {
			side = service.SideAdmin
		}
		if _, err := r.Lifecycle.EndClarification(ctx, service.Actor{ID: u.UserID, Side: side}, state.Data.RequestID); err != nil {
			r.Logger.Warn("end clarification on /start", zap.Int64("user_id", u.UserID), zap.Error(err))
		}
	}
	if err := r.Sessions.Clear(ctx, r.key(u.UserID)); err != nil {
		return apperrors.NewInternalError(err)
	}

	user, created, err := r.Users.EnsureUser(ctx, u.UserID)
	if err != nil {
		return err
	}
	if created {
		r.send(ctx, u.ChatID, userGuide, nil)
	}
	if !user.Registered {
		return r.Runner.Start(ctx, r.Registration, u.UserID, nil)
	}
	r.send(ctx, u.ChatID, "С возвращением! Главное меню:", service.MainMenu(user.Role))
	return nil
}

func (r *Router) menu(ctx context.Context, u transport.Update, text string) error {
	switch text {
	case service.MenuCreateIT, service.MenuCreateAHO:
		user, err := r.Users.Get(ctx, u.UserID)
		if err != nil {
			return err
		}
		if !user.Registered {
			return apperrors.NewPreconditionFailed(
				"Вы не зарегистрированы или регистрация не завершена. Пожалуйста, начните с команды /start.", nil)
		}
		requestType := domain.RequestTypeIT
		if text == service.MenuCreateAHO {
			requestType = domain.RequestTypeAHO
		}
		return r.Runner.Start(ctx, r.Intake, u.UserID, flow.Form{flow.FieldType: string(requestType)})
	case service.MenuMyRequests:
		return r.Lifecycle.ShowCreatorRequests(ctx, u.UserID)
	case service.MenuAcceptedByMe:
		return r.Lifecycle.ShowAdminRequests(ctx, u.UserID)
	case service.MenuNewRequests:
		return r.Lifecycle.ShowNewRequests(ctx, u.UserID)
	case service.MenuPortal:
		r.send(ctx, u.ChatID, service.MenuPortal+": "+r.PortalURL, nil)
		return nil
	}

	role := domain.RoleUser
	if user, err := r.Users.Get(ctx, u.UserID); err == nil {
		role = user.Role
	}
	r.send(ctx, u.ChatID, "Пожалуйста, воспользуйтесь меню или командой /start.", service.MainMenu(role))
	return nil
}

func (r *Router) handleCallback(ctx context.Context, u transport.Update) error {
	payload, err := action.Parse(u.CallbackData)
	if err != nil {
		r.Logger.Info("unknown button payload", zap.String("data", u.CallbackData))
		return apperrors.NewValidationError("Эта кнопка больше не действует.", nil)
	}
	origin := service.Origin{MessageID: u.MessageID, Text: u.MessageText, HasMedia: u.MessageHasMedia}
	admin := service.Actor{ID: u.UserID, Side: service.SideAdmin}
	user := service.Actor{ID: u.UserID, Side: service.SideUser}

	switch payload.Kind {
	case action.Flow:
		return r.handleChoice(ctx, u, payload.Value)
	case action.Accept:
		_, err = r.Lifecycle.Accept(ctx, u.UserID, payload.RequestID, origin)
	case action.Decline:
		_, err = r.Lifecycle.Decline(ctx, u.UserID, payload.RequestID, origin)
	case action.ClarifyStart:
		_, err = r.Lifecycle.StartClarification(ctx, admin, payload.RequestID, origin)
	case action.ClarifyEnd:
		_, err = r.Lifecycle.EndClarification(ctx, admin, payload.RequestID)
	case action.Done:
		err = r.Lifecycle.BeginCompletion(ctx, u.UserID, payload.RequestID, origin)
	case action.FeedbackSkip:
		_, err = r.Lifecycle.Complete(ctx, u.UserID, payload.RequestID, nil)
	case action.FeedbackCancel:
		err = r.Lifecycle.CancelCompletion(ctx, u.UserID, payload.RequestID)
	case action.UserDone:
		_, err = r.Lifecycle.CompleteByCreator(ctx, u.UserID, payload.RequestID, origin)
	case action.UserClarifyStart:
		_, err = r.Lifecycle.StartClarification(ctx, user, payload.RequestID, origin)
	case action.UserClarifyEnd:
		_, err = r.Lifecycle.EndClarification(ctx, user, payload.RequestID)
	}
	return err
}

func (r *Router) handleChoice(ctx context.Context, u transport.Update, value string) error {
	state, err := r.Sessions.Get(ctx, r.key(u.UserID))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	in := flow.Input{Choice: value, MessageID: u.MessageID}
	for _, f := range []*flow.Flow{r.Registration, r.Intake} {
		if f.Owns(state.Stage) {
			return r.Runner.Handle(ctx, f, u.UserID, in)
		}
	}
	return apperrors.NewPreconditionFailed("Этот выбор больше не актуален.", nil)
}

func (r *Router) send(ctx context.Context, chatID int64, text string, markup *transport.Markup) {
	if _, err := r.Notifier.SendText(ctx, chatID, text, markup); err != nil {
		r.Metrics.RecordDeliveryFailure("send")
		r.Logger.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
