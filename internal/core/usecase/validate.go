package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/core/matching"
	"github.com/kirillkom/edc-ingest/internal/core/ports"
)

// Validator reconciles one batch folder against the schema registry. Content
// findings (low confidence, ambiguity, missing required tables) are report
// content; only infrastructure problems surface as errors.
type Validator struct {
	scanner      ports.InventoryScanner
	matcher      *matching.Matcher
	registry     ports.SchemaRegistry
	batches      ports.BatchStatusStore
	defaultStudy string
	log          *slog.Logger
}

func NewValidator(
	scanner ports.InventoryScanner,
	matcher *matching.Matcher,
	registry ports.SchemaRegistry,
	batches ports.BatchStatusStore,
	defaultStudy string,
	log *slog.Logger,
) *Validator {
	return &Validator{
		scanner:      scanner,
		matcher:      matcher,
		registry:     registry,
		batches:      batches,
		defaultStudy: defaultStudy,
		log:          log,
	}
}

func (v *Validator) Validate(ctx context.Context, folderPath string) (*domain.ValidationReport, error) {
	if strings.TrimSpace(folderPath) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate batch", fmt.Errorf("folder path is empty"))
	}

	entries, err := v.scanner.Scan(ctx, folderPath)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := domain.UploadBatch{
		ID:         uuid.NewString(),
		FolderPath: folderPath,
		Study:      domain.StudyFromFolder(filepath.Base(folderPath), v.defaultStudy),
		Status:     domain.StatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := v.batches.Upsert(ctx, &batch); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}

	expectations := v.registry.All()
	decisions := v.matcher.Match(entries, expectations)
	missing := missingRequired(expectations, decisions)
	isValid := len(missing) == 0 && allDecisionsValid(decisions)

	status := domain.StatusValidated
	message := ""
	if !isValid {
		status = domain.StatusInvalid
		message = invalidSummary(missing, decisions)
	}
	if err := v.batches.SetStatus(ctx, batch.ID, status, message); err != nil {
		return nil, fmt.Errorf("update batch status: %w", err)
	}
	batch.Status = status
	batch.Error = message

	v.log.Info("batch validated",
		slog.String("batch_id", batch.ID),
		slog.String("study", batch.Study),
		slog.Int("files", len(entries)),
		slog.Int("missing_required", len(missing)),
		slog.Bool("is_valid", isValid),
	)

	return &domain.ValidationReport{
		Batch:     batch,
		Decisions: decisions,
		Missing:   missing,
		IsValid:   isValid,
	}, nil
}

// missingRequired lists every required table no unambiguous decision claims.
func missingRequired(expectations []domain.SchemaExpectation, decisions []domain.MatchDecision) []string {
	claimed := make(map[string]struct{}, len(decisions))
	for _, d := range decisions {
		if d.Matched() && !d.Ambiguous {
			claimed[d.TableID] = struct{}{}
		}
	}
	var missing []string
	for _, exp := range expectations {
		if !exp.Required {
			continue
		}
		if _, ok := claimed[exp.TableID]; !ok {
			missing = append(missing, exp.TableID)
		}
	}
	return missing
}

// allDecisionsValid holds when no file in the batch needs review: every
// decision classifies valid, with no pending or ambiguous leftovers.
func allDecisionsValid(decisions []domain.MatchDecision) bool {
	for _, d := range decisions {
		if domain.Classify(d) != domain.DecisionValid {
			return false
		}
	}
	return true
}

func invalidSummary(missing []string, decisions []domain.MatchDecision) string {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required tables: "+strings.Join(missing, ", "))
	}
	ambiguous := 0
	pending := 0
	for _, d := range decisions {
		switch domain.Classify(d) {
		case domain.DecisionInvalid:
			if d.Ambiguous {
				ambiguous++
			}
		case domain.DecisionPending:
			pending++
		}
	}
	if ambiguous > 0 {
		parts = append(parts, fmt.Sprintf("%d ambiguous files", ambiguous))
	}
	if pending > 0 {
		parts = append(parts, fmt.Sprintf("%d files pending review", pending))
	}
	if len(parts) == 0 {
		parts = append(parts, "low confidence matches")
	}
	return strings.Join(parts, "; ")
}
