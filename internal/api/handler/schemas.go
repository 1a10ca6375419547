package handler

import "github.com/fieldreport/reporting-api/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	Role    domain.Role `json:"role"`
}

// --- Users ---

// Request bodies use camelCase profile keys; responses render domain.User,
// which keeps snake_case.

type createUserRequest struct {
	Username    string  `json:"username"    validate:"required,max=255"`
	Role        string  `json:"role"        validate:"required,oneof=admin user"`
	Password    string  `json:"password"    validate:"required"`
	FirstName   *string `json:"firstName"   validate:"omitempty,max=255"`
	LastName    *string `json:"lastName"    validate:"omitempty,max=255"`
	Position    *string `json:"position"    validate:"omitempty,max=255"`
	OdooBatchID *string `json:"odooBatchId" validate:"omitempty,max=255"`
}

type updateUserRequest struct {
	Username    *string `json:"username"    validate:"omitempty,max=255"`
	Role        *string `json:"role"        validate:"omitempty,oneof=admin user"`
	Password    *string `json:"password"`
	FirstName   *string `json:"firstName"   validate:"omitempty,max=255"`
	LastName    *string `json:"lastName"    validate:"omitempty,max=255"`
	Position    *string `json:"position"    validate:"omitempty,max=255"`
	OdooBatchID *string `json:"odooBatchId" validate:"omitempty,max=255"`
}

// --- Reports ---

// submitReportForm mirrors the multipart fields of POST /reports/submit.
// The optional photo travels as the "photo" file part.
type submitReportForm struct {
	CustomerName   string `form:"customerName"   validate:"max=255"`
	Date           string `form:"date"`
	Location       string `form:"location"       validate:"max=255"`
	SubmissionTime string `form:"submissionTime"`
	EndTime        string `form:"endTime"`
	Description    string `form:"description"`
}

type submitReportResponse struct {
	Message string         `json:"message"`
	Report  *domain.Report `json:"report"`
}
