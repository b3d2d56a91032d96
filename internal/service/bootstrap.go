package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// categoryTree is the default IT category tree.
var categoryTree = []struct {
	Name          string
	Subcategories []string
}{
	{"Рабочие места и оборудование", []string{
		"Настройка нового ПК/ноутбука",
		"Зависания ПК",
		"Установка подключения из дома",
		"Проблемы с монитором/клавиатурой/мышью",
		"Забыли пароль",
		"Не запускается компьютер",
		"Ошибки операционной системы (Синий экран)",
		"Настройка рабочего места (перемещение, замена)",
	}},
	{"Принтеры и МФУ", []string{
		"Не печатает/Не сканирует",
		"Подключение нового принтера / МФУ",
		"Замятие бумаги",
		"Закончился картридж / тонер",
		"Ошибки печати (полосы, смазано)",
	}},
	{"ПО и сервисы", []string{
		"БКС/Next: Проблемы/ошибки",
		"Свод: Проблемы/ошибки",
		"Проект: Проблемы/ошибки",
		"Торги: Проблемы/ошибки",
		"ЕЦИС/БГУ/ЗиКГУ проблемы/ошибки",
		"СУФД: Проблемы/ошибки",
		"Добавление/изменение ролей/настройка прав",
		"Запрос выгрузки/загрузки данных",
		"Запрос аналитики/отчета/бизнес-процесса",
		"Запрос настройки ПО/нового функционала",
		"Установка/настройка Бюджет-/Проект-/Свод-смарт",
		"Установка/настройка ЕЦИС БГУ, ЗиКГУ и прочее",
		"Установка офисного пакета (MS Office/LibreOffice)",
		"Нужна консультация по использованию ПО",
		"Сбои после обновлений",
	}},
	{"Почта и Интернет", []string{
		"Настройка почты",
		"Не приходят/не отправляются письма",
		"Переполнен почтовый ящик",
		"Доступ к общим почтовым ящикам",
		"Нет подключения к интернету",
		"Не работает удаленное подключение",
	}},
	{"Аккаунты, доступы, пароли и информационная безопасность", []string{
		"Забыли пароль - сброс/восстановление пароля",
		"Создание нового пользователя",
		"Доступ к почтовому ящику",
		"Доступ к сетевым папкам",
		"Подозрительное письмо / фишинг",
		"Срабатывание антивируса",
		"Запрос на открытие заблокированного сайта",
	}},
}

// Bootstrap prepares reference data at startup. Every method is idempotent.
type Bootstrap struct {
	base
}

// NewBootstrap creates the bootstrapper.
func NewBootstrap(deps Dependencies) *Bootstrap {
	return &Bootstrap{base: newBase(deps)}
}

// ReconcileAdmins makes the Admin rows equal the configured lists. Configured admins
// get a row and a user whose role matches it; rows no longer configured are
// removed and their users demoted to plain users.
func (b *Bootstrap) ReconcileAdmins(ctx context.Context, itIDs, ahoIDs []int64) error {
	wanted := make(map[domain.Admin]bool, len(itIDs)+len(ahoIDs))
	configured := make(map[int64]bool, len(itIDs)+len(ahoIDs))
	for _, id := range itIDs {
		wanted[domain.Admin{ID: id, Type: domain.AdminTypeIT}] = true
		configured[id] = true
	}
	for _, id := range ahoIDs {
		wanted[domain.Admin{ID: id, Type: domain.AdminTypeAHO}] = true
		configured[id] = true
	}

	for _, group := range []struct {
		ids   []int64
		kind  domain.AdminType
		label string
	}{
		{itIDs, domain.AdminTypeIT, "IT Admin"},
		{ahoIDs, domain.AdminTypeAHO, "AHO Admin"},
	} {
		for _, id := range group.ids {
			if err := b.reconcileAdmin(ctx, id, group.kind, group.label); err != nil {
				return err
			}
		}
	}

	existing, err := b.store.Admins.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	for _, admin := range existing {
		if wanted[admin] {
			continue
		}
		if err := b.store.Admins.Delete(ctx, admin); err != nil {
			return fmt.Errorf("delete admin %d: %w", admin.ID, err)
		}
		b.logger.Info("admin removed", zap.Int64("admin_id", admin.ID), zap.String("type", string(admin.Type)))
		if configured[admin.ID] {
			continue
		}
		if err := b.demote(ctx, admin.ID); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bootstrap) demote(ctx context.Context, id int64) error {
	user, err := b.store.Users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load removed admin %d: %w", id, err)
	}
	if !user.Role.IsAdmin() {
		return nil
	}
	user.Role = domain.RoleUser
	if err := b.store.Users.Update(ctx, user); err != nil {
		return fmt.Errorf("demote admin %d: %w", id, err)
	}
	return nil
}

func (b *Bootstrap) reconcileAdmin(ctx context.Context, id int64, kind domain.AdminType, label string) error {
	if err := b.store.Admins.Upsert(ctx, domain.Admin{ID: id, Type: kind}); err != nil {
		return fmt.Errorf("upsert admin %d: %w", id, err)
	}

	user, err := b.store.Users.GetByID(ctx, id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		user = &domain.User{
			ID:           id,
			FullName:     fmt.Sprintf("%s %d", label, id),
			Phone:        notAvailable,
			Organization: notAvailable,
			Registered:   true,
			Role:         kind.Role(),
			CreatedAt:    b.now(),
		}
		if err := b.store.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("create admin user %d: %w", id, err)
		}
	case err != nil:
		return fmt.Errorf("load admin user %d: %w", id, err)
	case user.Role != kind.Role() || !user.Registered:
		user.Role = kind.Role()
		user.Registered = true
		if err := b.store.Users.Update(ctx, user); err != nil {
			return fmt.Errorf("update admin user %d: %w", id, err)
		}
	}
	b.logger.Info("admin reconciled", zap.Int64("admin_id", id), zap.String("type", string(kind)))
	return nil
}

// SeedCategories inserts the default IT category tree.
func (b *Bootstrap) SeedCategories(ctx context.Context) error {
	for _, node := range categoryTree {
		category := &domain.Category{Name: node.Name, Type: domain.RequestTypeIT}
		if err := b.store.Categories.Upsert(ctx, category); err != nil {
			return fmt.Errorf("upsert category %q: %w", node.Name, err)
		}
		for _, name := range node.Subcategories {
			sub := &domain.Subcategory{CategoryID: category.ID, Name: name}
			if err := b.store.Categories.UpsertSubcategory(ctx, sub); err != nil {
				return fmt.Errorf("upsert subcategory %q: %w", name, err)
			}
		}
	}
	b.logger.Info("categories seeded", zap.Int("categories", len(categoryTree)))
	return nil
}
