package flow

import (
	"context"
	"strconv"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/config"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/service"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
)

// Registration step names.
const (
	StepFullName           = "full_name"
	StepPhone              = "phone"
	StepOrganization       = "organization"
	StepManualOrganization = "organization_manual"
	StepOfficeNumber       = "office_number"

	otherOrganization = "other"
)

// NewRegistration builds the registration dialogue. Organizations are offered by
// index because their names do not fit into a button payload.
func NewRegistration(cfg config.IntakeConfig, users *service.UserService, notifier transport.Notifier) *Flow {
	needsOffice := make(map[string]bool, len(cfg.OrganizationsWithOffice))
	for _, org := range cfg.OrganizationsWithOffice {
		needsOffice[org] = true
	}
	organization := func(form Form) string {
		choice := form[StepOrganization]
		if choice == otherOrganization {
			return form[StepManualOrganization]
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 0 || idx >= len(cfg.Organizations) {
			return ""
		}
		return cfg.Organizations[idx]
	}

	return &Flow{
		Name:  "registration",
		Stage: session.RegistrationStage,
		Steps: []Step{
			{
				Name:   StepFullName,
				Prompt: Text("Для использования бота необходимо зарегистрироваться. Укажите ваше ФИО:"),
				Retry:  "Пожалуйста, введите ваше ФИО текстом.",
			},
			{
				Name:   StepPhone,
				Prompt: Text("Отлично! Теперь укажите ваш номер телефона:"),
				Retry:  "Пожалуйста, введите ваш номер телефона текстом.",
			},
			{
				Name:   StepOrganization,
				Prompt: Text("Пожалуйста, выберите вашу организацию из списка или введите название самостоятельно:"),
				Input:  InputChoice,
				Choices: func(context.Context, Form) ([]Choice, error) {
					choices := make([]Choice, 0, len(cfg.Organizations)+1)
					for i, org := range cfg.Organizations {
						choices = append(choices, Choice{Label: org, Value: strconv.Itoa(i)})
					}
					return append(choices, Choice{Label: "Указать название самостоятельно", Value: otherOrganization}), nil
				},
			},
			{
				Name:   StepManualOrganization,
				Prompt: Text("Пожалуйста, введите название вашей организации вручную:"),
				When:   func(form Form) bool { return form[StepOrganization] == otherOrganization },
				Retry:  "Пожалуйста, введите название вашей организации текстом.",
			},
			{
				Name:   StepOfficeNumber,
				Prompt: Text("Пожалуйста, укажите номер кабинета:"),
				When:   func(form Form) bool { return needsOffice[organization(form)] },
				Retry:  "Пожалуйста, введите номер кабинета текстом.",
			},
		},
		Complete: func(ctx context.Context, userID int64, form Form) error {
			user, err := users.Register(ctx, userID, service.Registration{
				FullName:     form[StepFullName],
				Phone:        form[StepPhone],
				Organization: organization(form),
				OfficeNumber: form[StepOfficeNumber],
			})
			if err != nil {
				return err
			}
			_, err = notifier.SendText(ctx, userID, "Регистрация завершена! Теперь вы можете создавать заявки.", service.MainMenu(user.Role))
			return err
		},
	}
}
