package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/domain"
)

// Form intents accepted by the audit dispatcher.
const (
	IntentCompleteAudit = "complete-audit"
	IntentCancelAudit   = "cancel-audit"
	IntentUpdateCounts  = "update-counts"
)

type auditBody struct {
	Name               string            `json:"name,omitempty" maxLength:"255" doc:"Audit name; defaults to the target name"`
	Description        string            `json:"description,omitempty" maxLength:"2000" doc:"Free text description"`
	ScopeMeta          *domain.ScopeMeta `json:"scope_meta,omitempty" doc:"Location or kit details; type must match the audit type"`
	AssigneeIDs        []uuid.UUID       `json:"assignee_ids,omitempty" maxItems:"100" doc:"Users assigned to the audit; the first is the lead"`
	DueDate            *time.Time        `json:"due_date,omitempty" doc:"Optional due date, must be in the future"`
	ExpectedAssetIDs   []uuid.UUID       `json:"expected_asset_ids,omitempty" maxItems:"10000" doc:"Assets expected at the target"`
	ExpectedAssetCount int               `json:"expected_asset_count,omitempty" minimum:"0" doc:"Expected count when no asset IDs are given"`
}

func (b auditBody) params(t domain.AuditType, targetID uuid.UUID) audit.CreateParams {
	scope := domain.ScopeMeta{Type: t}
	if b.ScopeMeta != nil {
		scope = *b.ScopeMeta
		if scope.Type == "" {
			scope.Type = t
		}
	}
	return audit.CreateParams{
		Name:               b.Name,
		Description:        b.Description,
		Type:               t,
		TargetID:           targetID,
		ScopeMeta:          scope,
		AssigneeIDs:        b.AssigneeIDs,
		DueDate:            b.DueDate,
		ExpectedAssetIDs:   b.ExpectedAssetIDs,
		ExpectedAssetCount: b.ExpectedAssetCount,
	}
}

type CreateAuditInput struct {
	Body struct {
		auditBody
		Type     domain.AuditType `json:"type" enum:"LOCATION,KIT" doc:"Audit target kind"`
		TargetID uuid.UUID        `json:"target_id" doc:"Location or kit ID"`
	}
}

type AuditOutput struct {
	Body *domain.AuditSession
}

type ListAuditsInput struct {
	Status string `query:"status" enum:"PENDING,ACTIVE,COMPLETED,CANCELLED" doc:"Filter by status"`
	Type   string `query:"type" enum:"LOCATION,KIT" doc:"Filter by audit type"`
	Limit  int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListAuditsOutput struct {
	Body []*domain.AuditSession
}

type AuditIDInput struct {
	ID uuid.UUID `path:"id" doc:"Audit ID"`
}

type countsBody struct {
	Found      *int `json:"found_asset_count,omitempty" minimum:"0" doc:"Absolute found count"`
	Missing    *int `json:"missing_asset_count,omitempty" minimum:"0" doc:"Absolute missing count"`
	Unexpected *int `json:"unexpected_asset_count,omitempty" minimum:"0" doc:"Absolute unexpected count"`
}

func (b countsBody) counts() (domain.Counts, bool) {
	if b.Found == nil || b.Missing == nil || b.Unexpected == nil {
		return domain.Counts{}, false
	}
	return domain.Counts{Found: *b.Found, Missing: *b.Missing, Unexpected: *b.Unexpected}, true
}

type UpdateCountsInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body countsBody
}

type AuditIntentInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body struct {
		countsBody
		Intent string `json:"intent" enum:"complete-audit,cancel-audit,update-counts" doc:"Action to perform"`
	}
}

type RecordScanInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body struct {
		AssetID uuid.UUID `json:"asset_id" doc:"Scanned asset ID"`
	}
}

type RecordScanOutput struct {
	Body *audit.ScanResult
}

type ListAuditAssetsInput struct {
	ID     uuid.UUID `path:"id" doc:"Audit ID"`
	Filter string    `query:"filter" doc:"ALL, EXPECTED, FOUND, MISSING or UNEXPECTED; empty selects EXPECTED"`
}

type ListAuditAssetsOutput struct {
	Body *audit.AssetList
}

type ListAuditNotesInput struct {
	ID     uuid.UUID `path:"id" doc:"Audit ID"`
	Limit  int       `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int       `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListAuditNotesOutput struct {
	Body []*domain.AuditNote
}

type AddAuditNoteInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body struct {
		Content string `json:"content" minLength:"1" maxLength:"5000" doc:"Markdown comment"`
	}
}

type AddAuditNoteOutput struct {
	Body *domain.AuditNote
}

type TargetAuditInput struct {
	Type     string    `path:"type" enum:"location,kit" doc:"Target kind"`
	TargetID uuid.UUID `path:"targetId" doc:"Location or kit ID"`
}

type GetOrCreateTargetAuditInput struct {
	Type     string    `path:"type" enum:"location,kit" doc:"Target kind"`
	TargetID uuid.UUID `path:"targetId" doc:"Location or kit ID"`
	Body     auditBody `required:"false"`
}

type GetOrCreateTargetAuditOutput struct {
	Status int
	Body   *domain.AuditSession
}

type AuditFilterInput struct {
	Filter string `query:"filter" doc:"Filter keyword; empty selects EXPECTED, unknown values select ALL"`
}

type AuditFilterOutput struct {
	Body domain.FilterMetadata
}

func RegisterAuditRoutes(api huma.API, svc AuditService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-audit",
		Method:      http.MethodPost,
		Path:        "/audits",
		Summary:     "Start an audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *CreateAuditInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.Create(ctx, actor, input.Body.params(input.Body.Type, input.Body.TargetID))
		if err != nil {
			return nil, domainError(err, "failed to create audit")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audits",
		Method:      http.MethodGet,
		Path:        "/audits",
		Summary:     "List audits",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *ListAuditsInput) (*ListAuditsOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		sessions, err := svc.List(ctx, actor, domain.AuditListFilter{
			Status: domain.AuditStatus(input.Status),
			Type:   domain.AuditType(input.Type),
			Limit:  input.Limit,
			Offset: input.Offset,
		})
		if err != nil {
			return nil, domainError(err, "failed to list audits")
		}
		return &ListAuditsOutput{Body: sessions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-audit",
		Method:      http.MethodGet,
		Path:        "/audits/{id}",
		Summary:     "Get an audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *AuditIDInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.Get(ctx, actor, input.ID)
		if err != nil {
			return nil, domainError(err, "failed to get audit")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-intent",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/intent",
		Summary:     "Apply a form intent to an audit",
		Description: "Dispatches complete-audit, cancel-audit and update-counts. update-counts requires all three counts.",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *AuditIntentInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		var session *domain.AuditSession
		switch input.Body.Intent {
		case IntentCompleteAudit:
			session, err = svc.Complete(ctx, actor, input.ID)
		case IntentCancelAudit:
			session, err = svc.Cancel(ctx, actor, input.ID)
		case IntentUpdateCounts:
			c, ok := input.Body.counts()
			if !ok {
				return nil, huma.Error422UnprocessableEntity("update-counts requires found, missing and unexpected counts")
			}
			session, err = svc.UpdateCounts(ctx, actor, input.ID, c)
		default:
			return nil, huma.Error422UnprocessableEntity("unknown intent " + input.Body.Intent)
		}
		if err != nil {
			return nil, domainError(err, "failed to apply "+input.Body.Intent)
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-audit",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/complete",
		Summary:     "Complete an audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *AuditIDInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.Complete(ctx, actor, input.ID)
		if err != nil {
			return nil, domainError(err, "failed to complete audit")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-audit",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/cancel",
		Summary:     "Cancel an audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *AuditIDInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.Cancel(ctx, actor, input.ID)
		if err != nil {
			return nil, domainError(err, "failed to cancel audit")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-audit-counts",
		Method:      http.MethodPut,
		Path:        "/audits/{id}/counts",
		Summary:     "Set absolute audit counters",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *UpdateCountsInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		c, ok := input.Body.counts()
		if !ok {
			return nil, huma.Error422UnprocessableEntity("found, missing and unexpected counts are required")
		}

		session, err := svc.UpdateCounts(ctx, actor, input.ID, c)
		if err != nil {
			return nil, domainError(err, "failed to update counts")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-audit-scan",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/scans",
		Summary:     "Record an asset scan",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *RecordScanInput) (*RecordScanOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		res, err := svc.RecordScan(ctx, actor, input.ID, input.Body.AssetID)
		if err != nil {
			return nil, domainError(err, "failed to record scan")
		}
		return &RecordScanOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audit-assets",
		Method:      http.MethodGet,
		Path:        "/audits/{id}/assets",
		Summary:     "List audit assets with their status label",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *ListAuditAssetsInput) (*ListAuditAssetsOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		list, err := svc.Assets(ctx, actor, input.ID, domain.ParseFilter(strings.ToUpper(input.Filter)))
		if err != nil {
			return nil, domainError(err, "failed to list audit assets")
		}
		return &ListAuditAssetsOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audit-notes",
		Method:      http.MethodGet,
		Path:        "/audits/{id}/notes",
		Summary:     "List audit activity notes",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *ListAuditNotesInput) (*ListAuditNotesOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		notes, err := svc.Notes(ctx, actor, input.ID, input.Limit, input.Offset)
		if err != nil {
			return nil, domainError(err, "failed to list audit notes")
		}
		return &ListAuditNotesOutput{Body: notes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-audit-note",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/notes",
		Summary:     "Comment on an audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *AddAuditNoteInput) (*AddAuditNoteOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		note, err := svc.AddComment(ctx, actor, input.ID, input.Body.Content)
		if err != nil {
			return nil, domainError(err, "failed to add note")
		}
		return &AddAuditNoteOutput{Body: note}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "get-or-create-target-audit",
		Method:        http.MethodPost,
		Path:          "/targets/{type}/{targetId}/audit",
		Summary:       "Get the open audit for a target, starting one if none exists",
		Tags:          []string{"Audits"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *GetOrCreateTargetAuditInput) (*GetOrCreateTargetAuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		t := domain.AuditType(strings.ToUpper(input.Type))
		session, created, err := svc.GetOrCreate(ctx, actor, input.Body.params(t, input.TargetID))
		if err != nil {
			return nil, domainError(err, "failed to get or create audit")
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return &GetOrCreateTargetAuditOutput{Status: status, Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-target-audit",
		Method:      http.MethodGet,
		Path:        "/targets/{type}/{targetId}/audit",
		Summary:     "Get the open audit for a target",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *TargetAuditInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.GetActive(ctx, actor, domain.AuditType(strings.ToUpper(input.Type)), input.TargetID)
		if err != nil {
			return nil, domainError(err, "failed to get active audit")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-audit-filter",
		Method:      http.MethodGet,
		Path:        "/audit-filters",
		Summary:     "Label and empty-state copy for an asset filter",
		Tags:        []string{"Audits"},
	}, func(_ context.Context, input *AuditFilterInput) (*AuditFilterOutput, error) {
		return &AuditFilterOutput{Body: domain.AuditFilterMetadata(domain.ParseFilter(strings.ToUpper(input.Filter)))}, nil
	})

	registerAuditEditRoutes(api, svc)
}
