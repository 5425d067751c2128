package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wardrate-engine/internal/domain"
	"wardrate-engine/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TransferSchemaVersion is the export document schema this build writes
// and the newest it will accept on import.
const TransferSchemaVersion = "1.0"

// SnapshotStore persists export documents (object storage).
type SnapshotStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ExportMeta describes an export document.
type ExportMeta struct {
	SchemaVersion string    `json:"schemaVersion"`
	ExportID      string    `json:"exportId"`
	ExportedAt    time.Time `json:"exportedAt"`
	RateCount     int       `json:"rateCount"`
}

// ExportRate is one rate row in the transfer format.
type ExportRate struct {
	ZoneID         int64              `json:"zoneId"`
	InstanceID     int64              `json:"instanceId"`
	Title          string             `json:"title"`
	Cost           float64            `json:"cost"`
	Priority       int                `json:"priority"`
	IsBlocked      bool               `json:"isBlocked"`
	StopAfterMatch bool               `json:"stopAfterMatch"`
	Conditions     []domain.Condition `json:"conditions"`
	WardCodes      []string           `json:"wardCodes"`
}

// ExportSummary lists the zones and instances covered by a document.
type ExportSummary struct {
	Zones     []int64 `json:"zones"`
	Instances []int64 `json:"instances"`
}

// ExportDocument is the versioned rate transfer format.
type ExportDocument struct {
	Meta    ExportMeta    `json:"meta"`
	Rates   []ExportRate  `json:"rates"`
	Summary ExportSummary `json:"summary"`
}

// ImportOptions control how existing rates are treated during import.
type ImportOptions struct {
	SkipExisting bool `json:"skipExisting"`
	Overwrite    bool `json:"overwrite"`
	ValidateOnly bool `json:"validateOnly"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// TransferUsecase handles rate export/import. The resolution engine never
// sees this format — imports land in the rate store like any other
// mutation, and flush the affected instances.
type TransferUsecase struct {
	rateRepo    domain.RateRepository
	invalidator *Invalidator
	snapshots   SnapshotStore // optional; nil disables snapshot upload
}

func NewTransferUsecase(rateRepo domain.RateRepository, invalidator *Invalidator, snapshots SnapshotStore) *TransferUsecase {
	return &TransferUsecase{
		rateRepo:    rateRepo,
		invalidator: invalidator,
		snapshots:   snapshots,
	}
}

// Export builds the transfer document for the given instances.
func (uc *TransferUsecase) Export(ctx context.Context, instanceIDs []int64) (*ExportDocument, error) {
	if len(instanceIDs) == 0 {
		return nil, fmt.Errorf("at least one instanceId is required")
	}

	doc := &ExportDocument{
		Meta: ExportMeta{
			SchemaVersion: TransferSchemaVersion,
			ExportID:      uuid.New().String(),
			ExportedAt:    time.Now().UTC(),
		},
		Rates: []ExportRate{},
	}

	zones := make(map[int64]struct{})
	instances := make(map[int64]struct{})

	for _, instanceID := range instanceIDs {
		rates, err := uc.rateRepo.ListByInstance(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to export instance %d: %w", instanceID, err)
		}

		for _, r := range rates {
			doc.Rates = append(doc.Rates, ExportRate{
				ZoneID:         r.ZoneID,
				InstanceID:     r.InstanceID,
				Title:          r.Label,
				Cost:           r.BaseCost,
				Priority:       r.Priority,
				IsBlocked:      r.IsBlockRule,
				StopAfterMatch: r.StopProcessing,
				Conditions:     r.Conditions,
				WardCodes:      r.WardCodes,
			})
			zones[r.ZoneID] = struct{}{}
			instances[r.InstanceID] = struct{}{}
		}
	}

	doc.Meta.RateCount = len(doc.Rates)
	doc.Summary = ExportSummary{
		Zones:     sortedKeys(zones),
		Instances: sortedKeys(instances),
	}

	return doc, nil
}

// ExportToStorage exports the instances and uploads the document as a JSON
// snapshot. Returns the public URL of the uploaded object.
func (uc *TransferUsecase) ExportToStorage(ctx context.Context, instanceIDs []int64) (string, error) {
	if uc.snapshots == nil {
		return "", fmt.Errorf("snapshot storage is not configured")
	}

	doc, err := uc.Export(ctx, instanceIDs)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	key := fmt.Sprintf("exports/rates-%s.json", doc.Meta.ExportID)
	url, err := uc.snapshots.Put(ctx, key, data, "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	logger.Info().
		Str("url", url).
		Int("rates", doc.Meta.RateCount).
		Msg("Rate export uploaded")

	return url, nil
}

// Import loads rates from a transfer document. Per-rate failures are
// counted, not fatal. Affected instances are flushed at the end.
func (uc *TransferUsecase) Import(ctx context.Context, doc *ExportDocument, opts ImportOptions) (*ImportResult, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	touched := make(map[int64]struct{})

	// Existing rates per instance, keyed by (label, priority), for the
	// skip/overwrite decision.
	existing := make(map[int64]map[importKey]int64)

	for i := range doc.Rates {
		row := &doc.Rates[i]

		byKey, ok := existing[row.InstanceID]
		if !ok {
			current, err := uc.rateRepo.ListByInstance(ctx, row.InstanceID)
			if err != nil {
				return nil, fmt.Errorf("failed to inspect instance %d: %w", row.InstanceID, err)
			}
			byKey = make(map[importKey]int64, len(current))
			for _, r := range current {
				byKey[importKey{r.Label, r.Priority}] = r.ID
			}
			existing[row.InstanceID] = byKey
		}

		existingID, exists := byKey[importKey{row.Title, row.Priority}]

		if opts.ValidateOnly {
			if exists {
				result.Skipped++
			} else {
				result.Created++
			}
			continue
		}

		switch {
		case exists && opts.Overwrite:
			// Mark before the attempt: the update may land even when the
			// rebind fails, and a partial mutation must still flush
			touched[row.InstanceID] = struct{}{}
			if err := uc.overwriteRate(ctx, existingID, row); err != nil {
				logger.Error().Err(err).Int64("rate_id", existingID).Msg("Import overwrite failed")
				result.Errors++
				continue
			}
			result.Updated++

		case exists && opts.SkipExisting:
			result.Skipped++
			continue

		default:
			rate := &domain.Rate{
				ZoneID:         row.ZoneID,
				InstanceID:     row.InstanceID,
				Priority:       row.Priority,
				Label:          row.Title,
				BaseCost:       row.Cost,
				IsBlockRule:    row.IsBlocked,
				StopProcessing: row.StopAfterMatch,
				Conditions:     row.Conditions,
				WardCodes:      normalizeCodes(row.WardCodes),
			}
			id, err := uc.rateRepo.Create(ctx, rate)
			if err != nil {
				logger.Error().Err(err).Str("title", row.Title).Msg("Import create failed")
				result.Errors++
				continue
			}
			byKey[importKey{row.Title, row.Priority}] = id
			result.Created++
		}

		touched[row.InstanceID] = struct{}{}
	}

	for instanceID := range touched {
		uc.invalidator.FlushInstance(instanceID)
	}

	return result, nil
}

type importKey struct {
	label    string
	priority int
}

func (uc *TransferUsecase) overwriteRate(ctx context.Context, id int64, row *ExportRate) error {
	conditions := row.Conditions
	patch := domain.RatePatch{
		Priority:       &row.Priority,
		Label:          &row.Title,
		BaseCost:       &row.Cost,
		IsBlockRule:    &row.IsBlocked,
		StopProcessing: &row.StopAfterMatch,
		Conditions:     &conditions,
	}
	if err := uc.rateRepo.Update(ctx, id, patch); err != nil {
		return err
	}
	return uc.rateRepo.Rebind(ctx, id, normalizeCodes(row.WardCodes))
}

func validateDocument(doc *ExportDocument) error {
	if doc == nil {
		return fmt.Errorf("import document is empty")
	}
	if doc.Meta.SchemaVersion == "" {
		return fmt.Errorf("import document has no schema version")
	}
	if doc.Meta.SchemaVersion > TransferSchemaVersion {
		return fmt.Errorf("unsupported schema version %s (max %s)",
			doc.Meta.SchemaVersion, TransferSchemaVersion)
	}
	if doc.Meta.RateCount != len(doc.Rates) {
		return fmt.Errorf("rate count mismatch: meta says %d, document has %d",
			doc.Meta.RateCount, len(doc.Rates))
	}
	return nil
}

func sortedKeys(set map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
