package domain

import "time"

// AuditAction names a state change worth recording in the audit trail.
type AuditAction string

const (
	AuditLoginSucceeded    AuditAction = "login_succeeded"
	AuditLoginFailed       AuditAction = "login_failed"
	AuditUserCreated       AuditAction = "user_created"
	AuditUserUpdated       AuditAction = "user_updated"
	AuditUserDeleted       AuditAction = "user_deleted"
	AuditAdminBootstrapped AuditAction = "admin_bootstrapped"
	AuditReportSubmitted   AuditAction = "report_submitted"
)

// AuditEvent is an append-only record of who did what to which subject.
type AuditEvent struct {
	Action    AuditAction
	ActorID   string // empty for anonymous actors (failed logins, bootstrap)
	SubjectID string
	Detail    map[string]string
	At        time.Time
}
