package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-case-service/internal/domain"
)

// CaseFilter captures staff listing parameters.
type CaseFilter struct {
	Statuses   []domain.CaseStatus
	Stages     []domain.Stage
	AssignedTo *string
	Limit      int
	Offset     int
}

// CaseRepository encapsulates case persistence. Update overwrites the whole
// record without a version check: the last write wins.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	List(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, case_number, current_stage, status, attempt_number,
               title, description, customer_name, customer_contact, location, assigned_to,
               findings, root_cause,
               solution, cost_required, estimated_cost, cost_description, cost_attachment_count, cost_status, cost_approved_by, cost_rejection_reason,
               execution_report, checklist_complete, signature_key, client_rating,
               closing_notes, final_cost, final_cost_status, final_cost_approved_by, final_cost_rejection_reason,
               created_at, updated_at, closed_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (case_number, current_stage, status, attempt_number,
            title, description, customer_name, customer_contact, location, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		c.CaseNumber,
		int(c.CurrentStage),
		c.Status,
		c.AttemptNumber,
		c.Title,
		c.Description,
		c.CustomerName,
		c.CustomerContact,
		c.Location,
		c.AssignedTo,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET current_stage=$1, status=$2, attempt_number=$3,
            title=$4, description=$5, customer_name=$6, customer_contact=$7, location=$8, assigned_to=$9,
            findings=$10, root_cause=$11,
            solution=$12, cost_required=$13, estimated_cost=$14, cost_description=$15, cost_status=$16,
            cost_approved_by=$17, cost_rejection_reason=$18,
            execution_report=$19, checklist_complete=$20, signature_key=$21, client_rating=$22,
            closing_notes=$23, final_cost=$24, final_cost_status=$25, final_cost_approved_by=$26,
            final_cost_rejection_reason=$27, closed_at=$28, cost_attachment_count=$29, updated_at=NOW()
        WHERE id=$30
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		int(c.CurrentStage),
		c.Status,
		c.AttemptNumber,
		c.Title,
		c.Description,
		c.CustomerName,
		c.CustomerContact,
		c.Location,
		c.AssignedTo,
		c.Findings,
		c.RootCause,
		c.Solution,
		c.CostRequired,
		nullDecimal(c.EstimatedCost),
		c.CostDescription,
		nullApproval(c.CostStatus),
		c.CostApprovedBy,
		c.CostRejectionReason,
		c.ExecutionReport,
		c.ChecklistComplete,
		c.SignatureKey,
		c.ClientRating,
		c.ClosingNotes,
		nullDecimal(c.FinalCost),
		nullApproval(c.FinalCostStatus),
		c.FinalCostApprovedBy,
		c.FinalCostRejectionReason,
		c.ClosedAt,
		c.CostAttachmentCount,
		c.ID,
	).Scan(&c.UpdatedAt)
	return err
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	c, err := scanCase(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *caseRepository) List(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, stage := range filter.Stages {
			args = append(args, int(stage))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("current_stage IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		caseColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var (
		c               domain.Case
		stage           int
		estimatedCost   decimal.NullDecimal
		finalCost       decimal.NullDecimal
		costStatus      *string
		finalCostStatus *string
	)
	if err := row.Scan(
		&c.ID,
		&c.CaseNumber,
		&stage,
		&c.Status,
		&c.AttemptNumber,
		&c.Title,
		&c.Description,
		&c.CustomerName,
		&c.CustomerContact,
		&c.Location,
		&c.AssignedTo,
		&c.Findings,
		&c.RootCause,
		&c.Solution,
		&c.CostRequired,
		&estimatedCost,
		&c.CostDescription,
		&c.CostAttachmentCount,
		&costStatus,
		&c.CostApprovedBy,
		&c.CostRejectionReason,
		&c.ExecutionReport,
		&c.ChecklistComplete,
		&c.SignatureKey,
		&c.ClientRating,
		&c.ClosingNotes,
		&finalCost,
		&finalCostStatus,
		&c.FinalCostApprovedBy,
		&c.FinalCostRejectionReason,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ClosedAt,
	); err != nil {
		return nil, err
	}
	c.CurrentStage = domain.Stage(stage)
	c.EstimatedCost = decimalPtr(estimatedCost)
	c.FinalCost = decimalPtr(finalCost)
	c.CostStatus = approvalFrom(costStatus)
	c.FinalCostStatus = approvalFrom(finalCostStatus)
	return &c, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullApproval(s domain.ApprovalStatus) *string {
	if s == domain.ApprovalNone {
		return nil
	}
	v := string(s)
	return &v
}

func approvalFrom(s *string) domain.ApprovalStatus {
	if s == nil {
		return domain.ApprovalNone
	}
	return domain.ApprovalStatus(*s)
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
