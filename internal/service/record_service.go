package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dom/wartracker/internal/domain"
	"github.com/dom/wartracker/internal/links"
	"github.com/dom/wartracker/internal/normalize"
	"github.com/dom/wartracker/internal/notescodec"
	"github.com/dom/wartracker/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RecordService struct {
	repo            repository.RecordRepository
	validate        *validator.Validate
	logger          *zap.Logger
	defaultGameKind string
}

func NewRecordService(repo repository.RecordRepository, linkValidator *links.Validator, defaultGameKind string, logger *zap.Logger) (*RecordService, error) {
	validate, err := newValidate(linkValidator)
	if err != nil {
		return nil, err
	}
	if defaultGameKind == "" {
		defaultGameKind = domain.DefaultGameKind
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		repo:            repo,
		validate:        validate,
		logger:          logger,
		defaultGameKind: defaultGameKind,
	}, nil
}

// RecordInput is a create request after normalization
type RecordInput struct {
	PlayedAt *time.Time `json:"playedAt"`
	GameKind string     `json:"gameKind"`
	Opponent string     `json:"opponent" validate:"required"`
	Points   *int       `json:"points"`

	MissionPack    *string `json:"missionPack"`
	PrimaryMission *string `json:"primaryMission"`
	Deployment     *string `json:"deployment"`
	TerrainLayout  *string `json:"terrainLayout"`

	SelfFaction         *string `json:"selfFaction"`
	SelfDetachment      *string `json:"selfDetachment"`
	SelfDocLink         *string `json:"selfDocLink" validate:"omitempty,storagelink"`
	SelfListSummary     *string `json:"selfListSummary"`
	OpponentFaction     *string `json:"opponentFaction"`
	OpponentDetachment  *string `json:"opponentDetachment"`
	OpponentDocLink     *string `json:"opponentDocLink" validate:"omitempty,storagelink"`
	OpponentListSummary *string `json:"opponentListSummary"`

	SelfScore      *int           `json:"selfScore"`
	OpponentScore  *int           `json:"opponentScore"`
	Result         domain.Outcome `json:"result"`
	ScoreSheetLink *string        `json:"scoreSheetLink" validate:"omitempty,storagelink"`

	Notes      *string  `json:"notes"`
	MediaLinks []string `json:"mediaLinks" validate:"dive,storagelink"`

	PhotoLinks map[domain.Phase]string `json:"photoLinks" validate:"dive,storagelink"`
	PhaseNotes map[domain.Phase]string `json:"phaseNotes"`
}

// RecordResult is a saved record plus the degraded-persistence warning, if any
type RecordResult struct {
	Record  *domain.MatchRecord `json:"record"`
	Warning string              `json:"warning,omitempty"`
}

// Keys accepted by Update, mapped to their columns.
var patchTextColumns = map[string]string{
	"notes": "notes",
}

var patchLinkColumns = map[string]string{
	"scoreSheetLink": "score_sheet_link",
}

func init() {
	for _, p := range domain.AllPhases {
		patchTextColumns[p.NotesKey()] = p.NotesColumn()
		patchLinkColumns[p.PhotoKey()] = p.PhotoColumn()
	}
}

// Create normalizes and validates a raw request body, resolves the outcome
// and stores the record.
func (s *RecordService) Create(ctx context.Context, raw map[string]any) (*RecordResult, error) {
	input, verr := s.parseInput(raw)
	if err := s.validateInput(input, verr); err != nil {
		return nil, err
	}

	record := s.buildRecord(input)
	report, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	if report.Degraded() {
		s.logger.Warn("record created on a lagging schema",
			zap.String("id", record.ID.String()),
			zap.Strings("dropped", report.DroppedColumns),
			zap.Bool("embedded", report.EmbeddedInNotes),
		)
	}

	return &RecordResult{Record: record, Warning: report.Warning()}, nil
}

// Update applies the keys present in raw. Keys outside the patchable set are
// ignored.
func (s *RecordService) Update(ctx context.Context, id uuid.UUID, raw map[string]any) (*RecordResult, error) {
	patch := domain.RecordPatch{}
	verr := &ValidationError{}

	for _, key := range slices.Sorted(maps.Keys(patchTextColumns)) {
		if normalize.Present(raw, key) {
			patch[patchTextColumns[key]] = nullable(normalize.Text(raw[key]))
		}
	}

	for _, key := range slices.Sorted(maps.Keys(patchLinkColumns)) {
		column := patchLinkColumns[key]
		if !normalize.Present(raw, key) {
			continue
		}
		link := normalize.Text(raw[key])
		if link != nil {
			s.checkLink(verr, key, *link)
		}
		patch[column] = nullable(link)
	}

	if normalize.Present(raw, "mediaLinks") {
		list := normalize.LinkList(raw["mediaLinks"])
		for i, link := range list {
			s.checkLink(verr, fmt.Sprintf("mediaLinks[%d]", i), link)
		}
		patch["media_links"] = domain.MediaLinksJSON(list)
	}

	if normalize.Present(raw, "playedAt") {
		playedAt, ok := parsePlayedAt(raw["playedAt"])
		if !ok {
			verr.add("playedAt is not a recognizable date", nil)
		}
		patch["played_at"] = nullable(playedAt)
	}

	if verr.HasErrors() {
		return nil, verr
	}

	if err := s.patchOutcome(ctx, id, raw, patch); err != nil {
		return nil, err
	}

	record, report, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	if report.Degraded() {
		s.logger.Warn("record updated on a lagging schema",
			zap.String("id", id.String()),
			zap.Strings("dropped", report.DroppedColumns),
			zap.Bool("embedded", report.EmbeddedInNotes),
		)
	}

	return &RecordResult{Record: record, Warning: report.Warning()}, nil
}

// Get returns a record; decode surfaces phase notes embedded in notes.
func (s *RecordService) Get(ctx context.Context, id uuid.UUID, decode bool) (*domain.MatchRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if decode {
		return DecodeRecord(record), nil
	}
	return record, nil
}

func (s *RecordService) List(ctx context.Context, filter domain.RecordFilter, decode bool) ([]*domain.MatchRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if records == nil {
		records = []*domain.MatchRecord{}
	}
	if decode {
		for i, r := range records {
			records[i] = DecodeRecord(r)
		}
	}
	return records, nil
}

// Stats summarizes outcomes over every record matching filter, ignoring its
// paging.
func (s *RecordService) Stats(ctx context.Context, filter domain.RecordFilter) (*domain.RecordStats, error) {
	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute record stats: %w", err)
	}
	return stats, nil
}

func (s *RecordService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// DecodeRecord returns a copy of record whose notes have the embedded phase
// payload stripped, with the payload filling any empty phase columns.
func DecodeRecord(record *domain.MatchRecord) *domain.MatchRecord {
	if record == nil || record.Notes == nil || !notescodec.HasPayload(*record.Notes) {
		return record
	}

	decoded := *record
	payload, text := notescodec.Decode(*record.Notes)
	decoded.Notes = nullableText(text)

	if payload != nil {
		for _, phase := range domain.AllPhases {
			_, notes := decoded.PhaseFields(phase)
			if *notes == nil {
				*notes = nullableText(payload.Get(phase))
			}
		}
	}
	return &decoded
}

func (s *RecordService) parseInput(raw map[string]any) (*RecordInput, *ValidationError) {
	verr := &ValidationError{}
	input := &RecordInput{
		GameKind:            s.defaultGameKind,
		Points:              normalize.Integer(raw["points"]),
		MissionPack:         normalize.Text(raw["missionPack"]),
		PrimaryMission:      normalize.Text(raw["primaryMission"]),
		Deployment:          normalize.Text(raw["deployment"]),
		TerrainLayout:       normalize.Text(raw["terrainLayout"]),
		SelfFaction:         normalize.Text(raw["selfFaction"]),
		SelfDetachment:      normalize.Text(raw["selfDetachment"]),
		SelfDocLink:         normalize.Text(raw["selfDocLink"]),
		SelfListSummary:     normalize.Text(raw["selfListSummary"]),
		OpponentFaction:     normalize.Text(raw["opponentFaction"]),
		OpponentDetachment:  normalize.Text(raw["opponentDetachment"]),
		OpponentDocLink:     normalize.Text(raw["opponentDocLink"]),
		OpponentListSummary: normalize.Text(raw["opponentListSummary"]),
		SelfScore:           normalize.Integer(raw["selfScore"]),
		OpponentScore:       normalize.Integer(raw["opponentScore"]),
		ScoreSheetLink:      normalize.Text(raw["scoreSheetLink"]),
		Notes:               normalize.Text(raw["notes"]),
		MediaLinks:          normalize.LinkList(raw["mediaLinks"]),
		PhotoLinks:          map[domain.Phase]string{},
		PhaseNotes:          map[domain.Phase]string{},
	}

	if kind := normalize.Text(raw["gameKind"]); kind != nil {
		input.GameKind = *kind
	}
	if opponent := normalize.Text(raw["opponent"]); opponent != nil {
		input.Opponent = *opponent
	}
	if result := normalize.Text(raw["result"]); result != nil {
		input.Result = domain.ParseOutcome(*result)
	}

	playedAt, ok := parsePlayedAt(raw["playedAt"])
	if !ok {
		verr.add("playedAt is not a recognizable date", nil)
	}
	input.PlayedAt = playedAt

	for _, phase := range domain.AllPhases {
		if link := normalize.Text(raw[phase.PhotoKey()]); link != nil {
			input.PhotoLinks[phase] = *link
		}
		if notes := normalize.Text(raw[phase.NotesKey()]); notes != nil {
			input.PhaseNotes[phase] = *notes
		}
	}

	return input, verr
}

func (s *RecordService) validateInput(input *RecordInput, verr *ValidationError) error {
	if err := s.validate.Struct(input); err != nil {
		verr.addValidatorErrors("", err)
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (s *RecordService) buildRecord(input *RecordInput) *domain.MatchRecord {
	record := &domain.MatchRecord{
		PlayedAt:            input.PlayedAt,
		GameKind:            input.GameKind,
		Opponent:            input.Opponent,
		Points:              input.Points,
		MissionPack:         input.MissionPack,
		PrimaryMission:      input.PrimaryMission,
		Deployment:          input.Deployment,
		TerrainLayout:       input.TerrainLayout,
		SelfFaction:         input.SelfFaction,
		SelfDetachment:      input.SelfDetachment,
		SelfDocLink:         input.SelfDocLink,
		SelfListSummary:     input.SelfListSummary,
		OpponentFaction:     input.OpponentFaction,
		OpponentDetachment:  input.OpponentDetachment,
		OpponentDocLink:     input.OpponentDocLink,
		OpponentListSummary: input.OpponentListSummary,
		SelfScore:           input.SelfScore,
		OpponentScore:       input.OpponentScore,
		Outcome:             resolveWithExplicit(input.SelfScore, input.OpponentScore, input.Result),
		ScoreSheetLink:      input.ScoreSheetLink,
		Notes:               input.Notes,
		MediaLinks:          domain.MediaLinksJSON(input.MediaLinks),
	}

	for _, phase := range domain.AllPhases {
		photo, notes := record.PhaseFields(phase)
		if link, ok := input.PhotoLinks[phase]; ok {
			*photo = &link
		}
		if text, ok := input.PhaseNotes[phase]; ok {
			*notes = &text
		}
	}
	return record
}

// patchOutcome keeps the stored outcome consistent with the scores after the
// patch is applied.
func (s *RecordService) patchOutcome(ctx context.Context, id uuid.UUID, raw map[string]any, patch domain.RecordPatch) error {
	selfChanged := normalize.Present(raw, "selfScore")
	opponentChanged := normalize.Present(raw, "opponentScore")
	resultChanged := normalize.Present(raw, "result")
	if !selfChanged && !opponentChanged && !resultChanged {
		return nil
	}

	stored, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	self, opponent := stored.SelfScore, stored.OpponentScore
	if selfChanged {
		self = normalize.Integer(raw["selfScore"])
		patch["self_score"] = nullable(self)
	}
	if opponentChanged {
		opponent = normalize.Integer(raw["opponentScore"])
		patch["opponent_score"] = nullable(opponent)
	}

	explicit := domain.OutcomeUnknown
	if resultChanged {
		if result := normalize.Text(raw["result"]); result != nil {
			explicit = domain.ParseOutcome(*result)
		}
	} else if stored.SelfScore == nil || stored.OpponentScore == nil {
		// the stored outcome was not derived from scores
		explicit = stored.Outcome
	}

	outcome := resolveWithExplicit(self, opponent, explicit)
	if outcome != stored.Outcome {
		patch["outcome"] = string(outcome)
	}
	return nil
}

// resolveWithExplicit prefers the scores; a caller-chosen result only stands
// in when a score is missing.
func resolveWithExplicit(self, opponent *int, explicit domain.Outcome) domain.Outcome {
	resolved := domain.ResolveOutcome(self, opponent)
	if resolved == domain.OutcomeUnknown && explicit.IsValid() {
		return explicit
	}
	return resolved
}

func (s *RecordService) checkLink(verr *ValidationError, field, link string) {
	if err := s.validate.Var(link, links.ValidationTag); err != nil {
		verr.addValidatorErrors(field, err)
	}
}

// parsePlayedAt reports false only for text that is present but not a date.
func parsePlayedAt(v any) (*time.Time, bool) {
	text := normalize.Text(v)
	if text == nil {
		return nil, true
	}
	at := normalize.Date(*text)
	return at, at != nil
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
