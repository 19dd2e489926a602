package auditevent

import (
	"context"
	"time"

	"github.com/rcm/rcm/internal/platform/middleware"
)

// insertTimeout bounds the write so a slow database cannot stall request
// handling; the middleware logs the entry regardless.
const insertTimeout = 5 * time.Second

// Recorder adapts the repository to the audit middleware.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) RecordAccess(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	return r.repo.Insert(ctx, &AccessRecord{
		UserID:     entry.UserID,
		UserRoles:  entry.UserRoles,
		Resource:   entry.Resource,
		Action:     entry.Action,
		Method:     entry.Method,
		Path:       entry.Path,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		RequestID:  entry.RequestID,
		StatusCode: entry.StatusCode,
		OccurredAt: entry.Timestamp,
	})
}
