package flow

import (
	"context"
	"strconv"
	"time"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/service"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Intake step names. FieldType is seeded by Start.
const (
	FieldType       = "type"
	StepCategory    = "category"
	StepSubcategory = "subcategory"
	StepAHOIssue    = "aho_issue"
	StepCarStart    = "car_start"
	StepCarEnd      = "car_end"
	StepCarLocation = "car_location"
	StepDescription = "description"
	StepAttachment  = "attachment"
	StepUrgency     = "urgency"
	StepDueDate     = "due_date"
	noCategory      = "none"
	ahoIssueCar     = "car"
	ahoIssueOther   = "other"
	dueDateExample  = "2025-12-31 10:00"
)

func isType(t domain.RequestType) func(Form) bool {
	return func(form Form) bool { return form[FieldType] == string(t) }
}

func wantsCar(form Form) bool {
	return form[FieldType] == string(domain.RequestTypeAHO) && form[StepAHOIssue] == ahoIssueCar
}

func parseDate(value string) error {
	if _, err := time.Parse(domain.DueDateLayout, value); err != nil {
		return apperrors.NewValidationError(service.DueDateFormatError, map[string]any{"value": value})
	}
	return nil
}

// NewIntake builds the request intake dialogue. IT requests pick a category and
// subcategory, AHO requests may book a car; both then share description,
// attachment and urgency.
func NewIntake(intake *service.IntakeService) *Flow {
	return &Flow{
		Name:  "intake",
		Stage: session.IntakeStage,
		Steps: []Step{
			{
				Name:   StepCategory,
				Prompt: Text("Выберите категорию проблемы:"),
				Input:  InputChoice,
				When:   isType(domain.RequestTypeIT),
				Choices: func(ctx context.Context, _ Form) ([]Choice, error) {
					categories, err := intake.Categories(ctx, domain.RequestTypeIT)
					if err != nil {
						return nil, err
					}
					choices := make([]Choice, 0, len(categories)+1)
					for _, c := range categories {
						choices = append(choices, Choice{Label: c.Name, Value: strconv.FormatInt(c.ID, 10)})
					}
					return append(choices, Choice{Label: "Другое", Value: noCategory}), nil
				},
			},
			{
				Name:   StepSubcategory,
				Prompt: Text("Уточните проблему:"),
				Input:  InputChoice,
				When: func(form Form) bool {
					return isType(domain.RequestTypeIT)(form) && form[StepCategory] != noCategory
				},
				Choices: func(ctx context.Context, form Form) ([]Choice, error) {
					categoryID, err := strconv.ParseInt(form[StepCategory], 10, 64)
					if err != nil {
						return nil, err
					}
					subs, err := intake.Subcategories(ctx, categoryID)
					if err != nil {
						return nil, err
					}
					choices := make([]Choice, 0, len(subs)+1)
					for _, s := range subs {
						choices = append(choices, Choice{Label: s.Name, Value: strconv.FormatInt(s.ID, 10)})
					}
					return append(choices, Choice{Label: "Другое", Value: noCategory}), nil
				},
			},
			{
				Name:   StepAHOIssue,
				Prompt: Text("Выберите тип АХО-заявки:"),
				Input:  InputChoice,
				When:   isType(domain.RequestTypeAHO),
				Choices: func(context.Context, Form) ([]Choice, error) {
					return []Choice{
						{Label: "Заказ автомобиля", Value: ahoIssueCar},
						{Label: "Другая хозяйственная заявка", Value: ahoIssueOther},
					}, nil
				},
			},
			{
				Name:     StepCarStart,
				Prompt:   Text("Укажите дату и время подачи автомобиля (например, " + dueDateExample + "):"),
				When:     wantsCar,
				Validate: func(value string, _ Form) error { return parseDate(value) },
			},
			{
				Name:   StepCarEnd,
				Prompt: Text("Укажите дату и время окончания поездки (например, " + dueDateExample + "):"),
				When:   wantsCar,
				Validate: func(value string, form Form) error {
					if err := parseDate(value); err != nil {
						return err
					}
					start, _ := time.Parse(domain.DueDateLayout, form[StepCarStart])
					end, _ := time.Parse(domain.DueDateLayout, value)
					if !end.After(start) {
						return apperrors.NewValidationError("Окончание поездки должно быть позже подачи автомобиля.", nil)
					}
					return nil
				},
			},
			{
				Name:   StepCarLocation,
				Prompt: Text("Укажите адрес подачи автомобиля:"),
				When:   wantsCar,
			},
			{
				Name: StepDescription,
				Prompt: func(form Form) string {
					return "Опишите вашу проблему для " + form[FieldType] + "-заявки:"
				},
				Retry: "Пожалуйста, введите описание проблемы текстом.",
			},
			{
				Name:   StepAttachment,
				Prompt: Text("Прикрепите изображение проблемы (если это необходимо) или нажмите «Пропустить»."),
				Input:  InputAttachment,
			},
			{
				Name:   StepUrgency,
				Prompt: Text("Как срочно необходимо выполнить заявку?"),
				Input:  InputChoice,
				Choices: func(context.Context, Form) ([]Choice, error) {
					return []Choice{
						{Label: "Как можно скорее", Value: string(domain.UrgencyASAP)},
						{Label: "Указать дату", Value: string(domain.UrgencyDate)},
					}, nil
				},
			},
			{
				Name:     StepDueDate,
				Prompt:   Text("Укажите желаемую дату и время выполнения заявки (например, " + dueDateExample + "):"),
				When:     func(form Form) bool { return form[StepUrgency] == string(domain.UrgencyDate) },
				Validate: func(value string, _ Form) error { return parseDate(value) },
			},
		},
		Complete: func(ctx context.Context, userID int64, form Form) error {
			_, err := intake.Submit(ctx, userID, DraftFromForm(form))
			return err
		},
	}
}

// DraftFromForm converts collected answers into a request draft.
func DraftFromForm(form Form) service.Draft {
	draft := service.Draft{
		Type:        domain.RequestType(form[FieldType]),
		Description: form[StepDescription],
		Urgency:     domain.Urgency(form[StepUrgency]),
		DueDate:     form[StepDueDate],
	}
	if id, err := strconv.ParseInt(form[StepCategory], 10, 64); err == nil {
		draft.CategoryID = &id
	}
	if id, err := strconv.ParseInt(form[StepSubcategory], 10, 64); err == nil {
		draft.SubcategoryID = &id
	}
	if fileID := form[StepAttachment]; fileID != "" {
		kind := domain.AttachmentKind(form[StepAttachment+"_kind"])
		if kind == "" {
			kind = domain.AttachmentPhoto
		}
		draft.Attachment = &domain.Attachment{FileID: fileID, Kind: kind}
	}
	if wantsCar(form) {
		draft.Car = &domain.CarBooking{
			Start:    form[StepCarStart],
			End:      form[StepCarEnd],
			Location: form[StepCarLocation],
		}
	}
	return draft
}
