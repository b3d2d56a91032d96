package domain

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// RequestType selects which admin group handles a request.
type RequestType string

const (
	RequestTypeIT  RequestType = "IT"
	RequestTypeAHO RequestType = "AHO"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == RequestTypeIT || t == RequestTypeAHO
}

// AdminType maps a request type to the admin group that receives it.
func (t RequestType) AdminType() AdminType {
	if t == RequestTypeAHO {
		return AdminTypeAHO
	}
	return AdminTypeIT
}

// Status enumerates lifecycle states for requests. Values are persisted literally.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusAccepted   Status = "ACCEPTED"
	StatusClarifying Status = "CLARIFYING"
	StatusDone       Status = "DONE"
)

var statusLabels = map[Status]string{
	StatusReceived:   "Принято",
	StatusAccepted:   "Принято к исполнению",
	StatusClarifying: "Уточнение",
	StatusDone:       "Выполнено",
}

// Label returns the text shown to users.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// RequiresAssignee reports whether a request in status s must have an assigned admin.
func (s Status) RequiresAssignee() bool {
	return s == StatusAccepted || s == StatusClarifying
}

// Urgency is either "as soon as possible" or a due date.
type Urgency string

const (
	UrgencyASAP Urgency = "ASAP"
	UrgencyDate Urgency = "DATE"
)

// DueDateLayout is the format users type due dates in.
const DueDateLayout = "2006-01-02 15:04"

// AttachmentKind distinguishes photo from document uploads.
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment references a file held by the chat platform.
type Attachment struct {
	FileID string
	Kind   AttachmentKind
}

// CarBooking carries the optional vehicle booking fields of an AHO request.
type CarBooking struct {
	Start    string
	End      string
	Location string
}

// AdminMessageMap records which chat message each notified admin received.
type AdminMessageMap map[int64]int

// Request is the aggregate for a support ticket.
type Request struct {
	ID                  int64
	CreatorID           int64
	Type                RequestType
	CategoryID          *int64
	SubcategoryID       *int64
	Description         string
	Urgency             Urgency
	DueDate             string
	Attachment          *Attachment
	Status              Status
	AssignedAdminID     *int64
	CompletedByID       *int64
	ClarifyReturnStatus Status
	Car                 *CarBooking
	AdminMessages       AdminMessageMap
	AdminMessageID      *int
	CreatedAt           time.Time
	CompletedAt         *time.Time
}

// IsAssignedTo reports whether adminID is the current executor.
func (r *Request) IsAssignedTo(adminID int64) bool {
	return r.AssignedAdminID != nil && *r.AssignedAdminID == adminID
}

// Excerpt returns up to n runes of the description.
func (r *Request) Excerpt(n int) string {
	if utf8.RuneCountInString(r.Description) <= n {
		return r.Description
	}
	runes := []rune(r.Description)
	return string(runes[:n])
}

// UrgencyText renders the urgency line value.
func (r *Request) UrgencyText() string {
	if r.Urgency == UrgencyDate && r.DueDate != "" {
		return "К " + r.DueDate
	}
	return "Как можно скорее"
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.CategoryID = cloneInt64(r.CategoryID)
	out.SubcategoryID = cloneInt64(r.SubcategoryID)
	out.AssignedAdminID = cloneInt64(r.AssignedAdminID)
	out.CompletedByID = cloneInt64(r.CompletedByID)
	if r.Attachment != nil {
		a := *r.Attachment
		out.Attachment = &a
	}
	if r.Car != nil {
		c := *r.Car
		out.Car = &c
	}
	if r.AdminMessages != nil {
		out.AdminMessages = make(AdminMessageMap, len(r.AdminMessages))
		for k, v := range r.AdminMessages {
			out.AdminMessages[k] = v
		}
	}
	if r.AdminMessageID != nil {
		id := *r.AdminMessageID
		out.AdminMessageID = &id
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// IDString is the request id as shown in chat.
func (r *Request) IDString() string {
	return strconv.FormatInt(r.ID, 10)
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Int64Ptr is a small helper for optional ids.
func Int64Ptr(v int64) *int64 {
	return &v
}

// IntPtr is a small helper for optional message ids.
func IntPtr(v int) *int {
	return &v
}
