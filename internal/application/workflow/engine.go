package workflow

import (
	"context"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// ApprovalEngine applies authorizer decisions to batches of headers.
// Every header is processed in its own transaction; one header never blocks another.
type ApprovalEngine interface {
	// Approve approves the pending steps the actor covers. With override a
	// privileged actor approves every pending step of the current level.
	Approve(ctx context.Context, headerIDs []int64, actor, comment string, override bool) (*entity.BatchOutcome, error)

	// Reject rejects the pending steps the actor covers, which rejects the header
	Reject(ctx context.Context, headerIDs []int64, actor, motiveCode, comment string, override bool) (*entity.BatchOutcome, error)

	// RequestMoreInfo records an information request next to the actor's pending steps
	RequestMoreInfo(ctx context.Context, headerIDs []int64, actor, description string) (*entity.BatchOutcome, error)

	// ResolveInfoRequest supersedes open information requests once the requester answered
	ResolveInfoRequest(ctx context.Context, headerIDs []int64, actor string) (*entity.BatchOutcome, error)

	// CascadeApprove approves level after level until the header is decided
	CascadeApprove(ctx context.Context, headerIDs []int64, actor string) (*entity.BatchOutcome, error)
}
