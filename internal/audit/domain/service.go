package domain

import (
	"context"
)

type RecordRequest struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]interface{}
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
