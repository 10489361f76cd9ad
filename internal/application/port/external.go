package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// AuthorizerDirectory resolves who may act on a step
type AuthorizerDirectory interface {
	ResolveCandidates(ctx context.Context, level entity.Level, authorizerType *string, costCenter string, asOf time.Time) ([]entity.Person, error)
	ResolveAssignmentsForActor(ctx context.Context, actorID string, asOf time.Time) ([]*entity.AuthorizerAssignment, error)
}

// MessageSender delivers a plain text message to one person
type MessageSender interface {
	SendText(ctx context.Context, openID string, content string) error
}

// ERPClient pushes a header's final decision to the ERP
type ERPClient interface {
	UpdateStatus(ctx context.Context, headerID int64, status entity.AggregateStatus) error
}

// RuleSheetCodec converts between the rule workbook and rule values
type RuleSheetCodec interface {
	Decode(r io.Reader) ([]*entity.Rule, error)
	Encode(w io.Writer, snapshot *entity.RuleSetSnapshot, authorizerTypes []string) error
}

// WorkbookArchive keeps a copy of every imported rule workbook
type WorkbookArchive interface {
	Save(ctx context.Context, version int64, actor string, content []byte) (string, error)
	Read(ctx context.Context, version int64) ([]byte, error)
}
