package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// RequestFilter captures listing parameters.
type RequestFilter struct {
	CreatorID *int64
	// AdminID matches requests assigned to or completed by the admin.
	AdminID  *int64
	Type     *domain.RequestType
	Statuses []domain.Status
	// DoneSince hides DONE requests completed before the given instant.
	DoneSince *time.Time
	Limit     int
}

// RequestRepository encapsulates request persistence.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id int64) (*domain.Request, error)
	Update(ctx context.Context, req *domain.Request) error
	// UpdateIfStatus writes req only while the stored status still equals expected.
	// It returns ErrStatusConflict when another writer got there first.
	UpdateIfStatus(ctx context.Context, req *domain.Request, expected domain.Status) error
	List(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, creator_id, request_type, category_id, subcategory_id, description, urgency,
       due_date, attachment_file_id, attachment_kind, status, assigned_admin_id, completed_by_id,
       clarify_return_status, car_start, car_end, car_location, admin_message_map, admin_message_id,
       created_at, completed_at`

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	const query = `
        INSERT INTO requests (creator_id, request_type, category_id, subcategory_id, description, urgency,
            due_date, attachment_file_id, attachment_kind, status, car_start, car_end, car_location, admin_message_map)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at`

	if req.Status == "" {
		req.Status = domain.StatusReceived
	}
	fileID, kind := attachmentColumns(req.Attachment)
	carStart, carEnd, carLocation := carColumns(req.Car)
	messages, err := encodeMessageMap(req.AdminMessages)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx, query,
		req.CreatorID,
		req.Type,
		req.CategoryID,
		req.SubcategoryID,
		req.Description,
		req.Urgency,
		nullString(req.DueDate),
		fileID,
		kind,
		req.Status,
		carStart,
		carEnd,
		carLocation,
		messages,
	).Scan(&req.ID, &req.CreatedAt)
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *requestRepository) Update(ctx context.Context, req *domain.Request) error {
	affected, err := r.exec(ctx, req, nil)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) UpdateIfStatus(ctx context.Context, req *domain.Request, expected domain.Status) error {
	affected, err := r.exec(ctx, req, &expected)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id=$1)`, req.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrStatusConflict
}

func (r *requestRepository) exec(ctx context.Context, req *domain.Request, expected *domain.Status) (int64, error) {
	query := `
        UPDATE requests SET status=$1, assigned_admin_id=$2, completed_by_id=$3, clarify_return_status=$4,
            admin_message_map=$5, admin_message_id=$6, completed_at=$7, description=$8
        WHERE id=$9`
	messages, err := encodeMessageMap(req.AdminMessages)
	if err != nil {
		return 0, err
	}
	args := []any{
		req.Status,
		req.AssignedAdminID,
		req.CompletedByID,
		nullString(string(req.ClarifyReturnStatus)),
		messages,
		req.AdminMessageID,
		req.CompletedAt,
		req.Description,
		req.ID,
	}
	if expected != nil {
		args = append(args, *expected)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.AdminID != nil {
		args = append(args, *filter.AdminID)
		clauses = append(clauses, fmt.Sprintf("(assigned_admin_id=$%d OR completed_by_id=$%d)", len(args), len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("request_type=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DoneSince != nil {
		args = append(args, domain.StatusDone, *filter.DoneSince)
		clauses = append(clauses, fmt.Sprintf("(status<>$%d OR completed_at >= $%d)", len(args)-1, len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM requests WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d`,
		requestColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *requestRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var (
		req                         domain.Request
		dueDate, fileID, kind       *string
		returnStatus                *string
		carStart, carEnd, carLocPtr *string
		messages                    []byte
	)
	if err := row.Scan(
		&req.ID,
		&req.CreatorID,
		&req.Type,
		&req.CategoryID,
		&req.SubcategoryID,
		&req.Description,
		&req.Urgency,
		&dueDate,
		&fileID,
		&kind,
		&req.Status,
		&req.AssignedAdminID,
		&req.CompletedByID,
		&returnStatus,
		&carStart,
		&carEnd,
		&carLocPtr,
		&messages,
		&req.AdminMessageID,
		&req.CreatedAt,
		&req.CompletedAt,
	); err != nil {
		return nil, err
	}

	if dueDate != nil {
		req.DueDate = *dueDate
	}
	if fileID != nil && kind != nil {
		req.Attachment = &domain.Attachment{FileID: *fileID, Kind: domain.AttachmentKind(*kind)}
	}
	if returnStatus != nil {
		req.ClarifyReturnStatus = domain.Status(*returnStatus)
	}
	if carStart != nil || carEnd != nil || carLocPtr != nil {
		req.Car = &domain.CarBooking{Start: deref(carStart), End: deref(carEnd), Location: deref(carLocPtr)}
	}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &req.AdminMessages); err != nil {
			return nil, fmt.Errorf("decode admin_message_map of request %d: %w", req.ID, err)
		}
	}
	return &req, nil
}

func encodeMessageMap(m domain.AdminMessageMap) ([]byte, error) {
	if m == nil {
		m = domain.AdminMessageMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode admin_message_map: %w", err)
	}
	return data, nil
}

func attachmentColumns(a *domain.Attachment) (*string, *string) {
	if a == nil || a.FileID == "" {
		return nil, nil
	}
	kind := string(a.Kind)
	return &a.FileID, &kind
}

func carColumns(c *domain.CarBooking) (*string, *string, *string) {
	if c == nil {
		return nil, nil, nil
	}
	return nullString(c.Start), nullString(c.End), nullString(c.Location)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
