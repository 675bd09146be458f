package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dom/wartracker/internal/domain"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/dom/wartracker/internal/notescodec"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var searchColumns = []string{
	"opponent",
	"self_faction",
	"self_detachment",
	"opponent_faction",
	"opponent_detachment",
	"notes",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type recordRepository struct {
	db              *gorm.DB
	logger          *zap.Logger
	metrics         *metrics.Metrics
	embedPhaseNotes bool
}

func NewRecordRepository(db *gorm.DB, opts Options) *recordRepository {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recordRepository{
		db:              db,
		logger:          logger,
		metrics:         opts.Metrics,
		embedPhaseNotes: opts.EmbedPhaseNotes,
	}
}

func (r *recordRepository) Create(ctx context.Context, record *domain.MatchRecord) (*domain.SaveReport, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	if record.MediaLinks == nil {
		record.MediaLinks = domain.MediaLinksJSON(nil)
	}

	originalNotes := record.Notes
	payload := phaseNotesOf(record)
	report := &domain.SaveReport{}

	omitted, err := writeWithFallback(func(omit []string) error {
		q := r.db.WithContext(ctx)
		if len(omit) > 0 {
			q = q.Omit(omit...)
		}
		return q.Create(record).Error
	}, func(l *fallbackLadder, dropped []string) error {
		r.logFallback("record.Create", record.ID, dropped)
		if !r.shouldEmbed(l, report) || payload.IsEmpty() {
			return nil
		}
		embedded := notescodec.Embed(deref(originalNotes), payload)
		record.Notes = &embedded
		report.EmbeddedInNotes = true
		return nil
	})
	if err != nil {
		record.Notes = originalNotes
		return nil, err
	}

	r.finishReport(report, "create", omitted)
	if len(omitted) > 0 {
		// the struct still holds the values that were left out
		stored, err := r.GetByID(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		*record = *stored
	}
	return report, nil
}

func (r *recordRepository) Update(ctx context.Context, id uuid.UUID, patch domain.RecordPatch) (*domain.MatchRecord, *domain.SaveReport, error) {
	report := &domain.SaveReport{}
	values := make(map[string]any, len(patch))
	for k, v := range patch {
		values[k] = v
	}

	if patch.Has("notes") {
		notes, err := r.keepEmbeddedPayload(ctx, id, patch["notes"])
		if err != nil {
			return nil, nil, err
		}
		values["notes"] = notes
	}

	omitted, err := writeWithFallback(func(omit []string) error {
		skip := make(map[string]bool, len(omit))
		for _, c := range omit {
			skip[c] = true
		}
		updates := make(map[string]any, len(values))
		for k, v := range values {
			if !skip[k] {
				updates[k] = v
			}
		}
		if len(updates) == 0 {
			return r.ensureExists(ctx, id)
		}

		result := r.db.WithContext(ctx).Model(&domain.MatchRecord{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrRecordNotFound
		}
		return nil
	}, func(l *fallbackLadder, dropped []string) error {
		r.logFallback("record.Update", id, dropped)
		if !r.shouldEmbed(l, report) || !hasPhaseNotes(patch) {
			return nil
		}
		notes, err := r.embedPatchedPhaseNotes(ctx, id, patch)
		if err != nil {
			return err
		}
		values["notes"] = notes
		report.EmbeddedInNotes = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	r.finishReport(report, "update", omitted)

	record, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return record, report, nil
}

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MatchRecord, error) {
	var record domain.MatchRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *recordRepository) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.MatchRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	find := func(order string) ([]*domain.MatchRecord, error) {
		var records []*domain.MatchRecord
		err := r.withSearchFallback("record.List", filter, func(columns []string) error {
			records = nil
			return r.filtered(ctx, filter, columns).
				Order(order).Order("recorded_at DESC").
				Limit(limit).
				Offset(offset).
				Find(&records).Error
		})
		return records, err
	}

	records, err := find("COALESCE(played_at, recorded_at) DESC")
	if _, missing := missingColumn(err); missing {
		r.logger.Warn("played_at missing, ordering by recorded_at", zap.String("op", "record.List"))
		records, err = find("recorded_at DESC")
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

type outcomeCount struct {
	Outcome string
	Count   int64
}

// Stats counts outcomes over every record matching the filter.
func (r *recordRepository) Stats(ctx context.Context, filter domain.RecordFilter) (*domain.RecordStats, error) {
	var rows []outcomeCount
	err := r.withSearchFallback("record.Stats", filter, func(columns []string) error {
		rows = nil
		return r.filtered(ctx, filter, columns).
			Select("outcome, COUNT(*) AS count").
			Group("outcome").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.Outcome]int, len(rows))
	for _, row := range rows {
		counts[domain.Outcome(row.Outcome)] += int(row.Count)
	}
	return domain.NewRecordStats(counts), nil
}

func (r *recordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.MatchRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// filtered scopes a query to the filter. The search term is matched against
// columns with ILIKE; wildcards in the term match literally.
func (r *recordRepository) filtered(ctx context.Context, filter domain.RecordFilter, columns []string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.MatchRecord{})
	if filter.GameKind != "" {
		q = q.Where("game_kind = ?", filter.GameKind)
	}

	term := strings.TrimSpace(filter.Query)
	if term == "" {
		return q
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	clauses := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		clauses = append(clauses, column+" ILIKE ?")
		args = append(args, pattern)
	}
	return q.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// withSearchFallback retries query without the search columns the schema
// lacks. opponent is always present.
func (r *recordRepository) withSearchFallback(op string, filter domain.RecordFilter, query func(columns []string) error) error {
	columns := searchColumns
	for {
		err := query(columns)
		column, missing := missingColumn(err)
		if !missing || strings.TrimSpace(filter.Query) == "" {
			return err
		}

		next := withoutSearchColumn(columns, column)
		if len(next) == len(columns) {
			return err
		}
		r.logger.Warn("search column missing, narrowing search",
			zap.String("op", op),
			zap.String("column", column),
			zap.Strings("columns", next),
		)
		columns = next
	}
}

func withoutSearchColumn(columns []string, column string) []string {
	switch {
	case requiredColumns[column]:
		return columns
	case column == "":
		return []string{"opponent"}
	}
	next := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != column {
			next = append(next, c)
		}
	}
	return next
}

func (r *recordRepository) ensureExists(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.MatchRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *recordRepository) storedNotes(ctx context.Context, id uuid.UUID) (string, error) {
	var stored domain.MatchRecord
	err := r.db.WithContext(ctx).Select("notes").Take(&stored, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrRecordNotFound
		}
		return "", err
	}
	return deref(stored.Notes), nil
}

// keepEmbeddedPayload carries an already embedded phase payload over to the
// new notes text, so editing notes does not lose it.
func (r *recordRepository) keepEmbeddedPayload(ctx context.Context, id uuid.UUID, notes any) (any, error) {
	current, err := r.storedNotes(ctx, id)
	if err != nil {
		if _, missing := missingColumn(err); missing {
			return notes, nil
		}
		return nil, err
	}

	existing, _ := notescodec.Decode(current)
	if existing == nil {
		return notes, nil
	}
	_, text := notescodec.Decode(stringValue(notes))
	return notescodec.Embed(text, *existing), nil
}

// embedPatchedPhaseNotes merges the patched annotations into the payload
// already stored in notes. A phase key present with an empty value clears it.
func (r *recordRepository) embedPatchedPhaseNotes(ctx context.Context, id uuid.UUID, patch domain.RecordPatch) (any, error) {
	current, err := r.storedNotes(ctx, id)
	if err != nil {
		return nil, err
	}

	existing, text := notescodec.Decode(current)
	if patch.Has("notes") {
		_, text = notescodec.Decode(stringValue(patch["notes"]))
	}

	var payload notescodec.PhaseNotes
	if existing != nil {
		payload = *existing
	}
	for _, phase := range domain.AllPhases {
		if v, ok := patch[phase.NotesColumn()]; ok {
			payload.Set(phase, stringValue(v))
		}
	}

	embedded := notescodec.Embed(text, payload)
	if strings.TrimSpace(embedded) == "" {
		return nil, nil
	}
	return embedded, nil
}

// shouldEmbed reports whether the phase notes columns are gone while notes is
// still writable.
func (r *recordRepository) shouldEmbed(l *fallbackLadder, report *domain.SaveReport) bool {
	return r.embedPhaseNotes &&
		!report.EmbeddedInNotes &&
		!l.isOmitted("notes") &&
		l.isOmitted(domain.PhaseDeployment.NotesColumn())
}

func (r *recordRepository) finishReport(report *domain.SaveReport, operation string, omitted []string) {
	report.DroppedColumns = omitted
	for _, c := range omitted {
		if c == "notes" {
			report.EmbeddedInNotes = false
		}
	}
	r.metrics.SchemaFallback(operation, omitted)
}

func (r *recordRepository) logFallback(op string, id uuid.UUID, dropped []string) {
	r.logger.Warn("schema is missing columns, retrying without them",
		zap.String("op", op),
		zap.String("id", id.String()),
		zap.Strings("columns", dropped),
	)
}

func phaseNotesOf(record *domain.MatchRecord) notescodec.PhaseNotes {
	var p notescodec.PhaseNotes
	for _, phase := range domain.AllPhases {
		_, notes := record.PhaseFields(phase)
		if *notes != nil {
			p.Set(phase, **notes)
		}
	}
	return p
}

func hasPhaseNotes(patch domain.RecordPatch) bool {
	for _, phase := range domain.AllPhases {
		if patch.Has(phase.NotesColumn()) {
			return true
		}
	}
	return false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		return deref(s)
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
