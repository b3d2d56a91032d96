package domain

import "strconv"

// AdminType enumerates admin groups.
type AdminType string

const (
	AdminTypeIT  AdminType = "IT_ADMIN"
	AdminTypeAHO AdminType = "AHO_ADMIN"
)

// Role returns the user role that matches the admin group.
func (t AdminType) Role() Role {
	if t == AdminTypeAHO {
		return RoleAHOAdmin
	}
	return RoleITAdmin
}

// RequestType returns the request type handled by the group.
func (t AdminType) RequestType() RequestType {
	if t == AdminTypeAHO {
		return RequestTypeAHO
	}
	return RequestTypeIT
}

// Admin links a user to the admin group that receives its request type.
type Admin struct {
	ID   int64
	Type AdminType
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
