package service

import (
	"fmt"
	"strings"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/action"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
)

// Menu labels shared with the bot router.
const (
	MenuCreateIT      = "Создать ИТ-заявку"
	MenuCreateAHO     = "Создать АХО-заявку"
	MenuMyRequests    = "Мои заявки"
	MenuAcceptedByMe  = "Мои принятые заявки"
	MenuNewRequests   = "Новые заявки"
	MenuEndClarify    = "Завершить уточнение"
	MenuPortal        = "Портал бюджетной системы Липецкой области"
	listingTimeLayout = "2006-01-02 15:04"
	excerptLength     = 50
	doneExcerptLength = 150
	unknownUserName   = "Неизвестный пользователь"
	defaultAdminName  = "Администратор"
	notAvailable      = "N/A"
)

// MainMenu returns the reply keyboard for a role.
func MainMenu(role domain.Role) *transport.Markup {
	rows := [][]string{{MenuCreateIT, MenuCreateAHO}, {MenuPortal}}
	if role.IsAdmin() {
		rows = append(rows, []string{MenuMyRequests, MenuAcceptedByMe}, []string{MenuNewRequests})
	} else {
		rows = append(rows, []string{MenuMyRequests})
	}
	return &transport.Markup{Menu: rows}
}

// renderAdminCard builds the admin-facing description of a request. A fresh card
// is the fan-out notification and carries no status line.
func renderAdminCard(req *domain.Request, creator, executor *domain.User, fresh bool) string {
	var b strings.Builder
	name := unknownUserName
	if creator != nil {
		name = creator.DisplayName()
	}
	if fresh {
		fmt.Fprintf(&b, "🚨 Новая заявка (%s) от %s 🚨\n", req.Type, name)
	} else {
		fmt.Fprintf(&b, "🚨 Заявка (%s) от %s 🚨\n", req.Type, name)
	}
	if creator != nil {
		fmt.Fprintf(&b, "📞 Телефон: %s\n🏢 Организация: %s\n", creator.Phone, creator.Organization)
		if creator.OfficeNumber != "" {
			fmt.Fprintf(&b, "🚪 Кабинет: %s\n", creator.OfficeNumber)
		}
	} else {
		b.WriteString("Пользователь не найден\n")
	}
	if req.Car != nil {
		fmt.Fprintf(&b, "🚗 Автомобиль: %s — %s\n📍 Место: %s\n", req.Car.Start, req.Car.End, req.Car.Location)
	}
	fmt.Fprintf(&b, "📝 Описание: %s\n", req.Description)
	fmt.Fprintf(&b, "⏰ Срочность: %s\n", req.UrgencyText())
	fmt.Fprintf(&b, "🆔 Заявка ID: %d", req.ID)
	if !fresh {
		b.WriteString("\n\n")
		b.WriteString(statusLine(req, executor))
	}
	return b.String()
}

func statusLine(req *domain.Request, executor *domain.User) string {
	line := "✅ Статус: " + req.Status.Label()
	if req.Status.RequiresAssignee() && executor != nil {
		line += " (" + executor.DisplayName() + ")"
	}
	return line
}

// adminKeyboard returns the actions adminID may take on req in its current status.
// afterClarification adds the decline action offered once a clarification ends.
func adminKeyboard(req *domain.Request, adminID int64, afterClarification bool) *transport.Markup {
	var rows [][]transport.Button
	switch req.Status {
	case domain.StatusReceived:
		rows = append(rows,
			transport.InlineRow(action.Button("Принять", action.Accept, req.ID)),
			transport.InlineRow(action.Button("Отправить уточнение", action.ClarifyStart, req.ID)),
		)
	case domain.StatusAccepted:
		if !req.IsAssignedTo(adminID) {
			return nil
		}
		rows = append(rows,
			transport.InlineRow(action.Button("Выполнено", action.Done, req.ID)),
			transport.InlineRow(action.Button("Отправить уточнение", action.ClarifyStart, req.ID)),
		)
	case domain.StatusClarifying:
		if !req.IsAssignedTo(adminID) {
			return nil
		}
		return transport.InlineMarkup(transport.InlineRow(action.Button(MenuEndClarify, action.ClarifyEnd, req.ID)))
	default:
		return nil
	}
	if afterClarification {
		rows = append(rows, transport.InlineRow(action.Button("Отказаться", action.Decline, req.ID)))
	}
	return transport.InlineMarkup(rows...)
}

// renderCreatorCard builds the creator-facing summary used in listings.
func renderCreatorCard(req *domain.Request, executor *domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Заявка ID: %d (%s) ---\n", req.ID, req.Type)
	fmt.Fprintf(&b, "Описание: %s\n", req.Description)
	fmt.Fprintf(&b, "Срочность: %s\n", req.UrgencyText())
	fmt.Fprintf(&b, "Статус: %s\n", req.Status.Label())
	if executor != nil {
		fmt.Fprintf(&b, "Исполнитель: %s\n", executor.DisplayName())
	}
	fmt.Fprintf(&b, "Создана: %s", req.CreatedAt.Format(listingTimeLayout))
	if req.Status == domain.StatusDone && req.CompletedAt != nil {
		fmt.Fprintf(&b, "\nВыполнена: %s", req.CompletedAt.Format(listingTimeLayout))
	}
	return b.String()
}

func creatorKeyboard(req *domain.Request) *transport.Markup {
	switch req.Status {
	case domain.StatusDone:
		return nil
	case domain.StatusClarifying:
		return transport.InlineMarkup(transport.InlineRow(action.Button(MenuEndClarify, action.UserClarifyEnd, req.ID)))
	default:
		return transport.InlineMarkup(
			transport.InlineRow(action.Button("Отметить как выполнено", action.UserDone, req.ID)),
			transport.InlineRow(action.Button("Задать уточнение", action.UserClarifyStart, req.ID)),
		)
	}
}

func feedbackKeyboard(requestID int64) *transport.Markup {
	return transport.InlineMarkup(
		transport.InlineRow(action.Button("Отправить без сообщения", action.FeedbackSkip, requestID)),
		transport.InlineRow(action.Button("Отменить", action.FeedbackCancel, requestID)),
	)
}

func requestRef(req *domain.Request) string {
	return fmt.Sprintf("ID:%d (%s)", req.ID, req.Excerpt(excerptLength))
}

// contactPhone returns u's phone, or "" for the bootstrap placeholder.
func contactPhone(u *domain.User) string {
	if u == nil {
		return ""
	}
	phone := strings.TrimSpace(u.Phone)
	if phone == notAvailable {
		return ""
	}
	return phone
}

func nameOf(u *domain.User, fallback string) string {
	if u == nil || u.FullName == "" {
		return fallback
	}
	return u.FullName
}
