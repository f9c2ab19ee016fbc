package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/domain"
)

type EditAuditAssetsInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body struct {
		AssetIDs []uuid.UUID `json:"asset_ids" minItems:"1" maxItems:"10000" doc:"Assets to add or remove"`
	}
}

type AddAuditAssetsOutput struct {
	Body *audit.AssetsAddedResult
}

type RemoveAuditScanInput struct {
	ID      uuid.UUID `path:"id" doc:"Audit ID"`
	AssetID uuid.UUID `path:"assetId" doc:"Scanned asset ID"`
}

type SetAuditDueDateInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body struct {
		DueDate *time.Time `json:"due_date,omitempty" doc:"New due date, must be in the future; omit to clear"`
	}
}

type AddAuditAssigneeInput struct {
	ID   uuid.UUID `path:"id" doc:"Audit ID"`
	Body struct {
		UserID uuid.UUID `json:"user_id" doc:"User to assign"`
	}
}

type RemoveAuditAssigneeInput struct {
	ID     uuid.UUID `path:"id" doc:"Audit ID"`
	UserID uuid.UUID `path:"userId" doc:"User to unassign"`
}

func registerAuditEditRoutes(api huma.API, svc AuditService) {
	huma.Register(api, huma.Operation{
		OperationID: "add-audit-assets",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/assets",
		Summary:     "Add expected assets to an open audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *EditAuditAssetsInput) (*AddAuditAssetsOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		res, err := svc.AddAssets(ctx, actor, input.ID, input.Body.AssetIDs)
		if err != nil {
			return nil, domainError(err, "failed to add audit assets")
		}
		return &AddAuditAssetsOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-audit-assets",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/assets/remove",
		Summary:     "Remove assets from an open audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *EditAuditAssetsInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.RemoveAssets(ctx, actor, input.ID, input.Body.AssetIDs)
		if err != nil {
			return nil, domainError(err, "failed to remove audit assets")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-audit-scan",
		Method:      http.MethodDelete,
		Path:        "/audits/{id}/scans/{assetId}",
		Summary:     "Undo an asset scan",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *RemoveAuditScanInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.RemoveScan(ctx, actor, input.ID, input.AssetID)
		if err != nil {
			return nil, domainError(err, "failed to remove scan")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-audit-due-date",
		Method:      http.MethodPut,
		Path:        "/audits/{id}/due-date",
		Summary:     "Change or clear the due date of an open audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *SetAuditDueDateInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.SetDueDate(ctx, actor, input.ID, input.Body.DueDate)
		if err != nil {
			return nil, domainError(err, "failed to set due date")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-audit-assignee",
		Method:      http.MethodPost,
		Path:        "/audits/{id}/assignees",
		Summary:     "Assign a user to an open audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *AddAuditAssigneeInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.AddAssignee(ctx, actor, input.ID, input.Body.UserID)
		if errors.Is(err, domain.ErrConflict) {
			return nil, huma.Error409Conflict("user is already assigned")
		}
		if err != nil {
			return nil, domainError(err, "failed to add assignee")
		}
		return &AuditOutput{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-audit-assignee",
		Method:      http.MethodDelete,
		Path:        "/audits/{id}/assignees/{userId}",
		Summary:     "Unassign a user from an open audit",
		Tags:        []string{"Audits"},
	}, func(ctx context.Context, input *RemoveAuditAssigneeInput) (*AuditOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		session, err := svc.RemoveAssignee(ctx, actor, input.ID, input.UserID)
		if err != nil {
			return nil, domainError(err, "failed to remove assignee")
		}
		return &AuditOutput{Body: session}, nil
	})
}
