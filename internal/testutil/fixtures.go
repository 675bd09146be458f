package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/dom/wartracker/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Str returns a pointer to v
func Str(v string) *string { return &v }

// RecordBuilder creates test match records with a builder pattern
type RecordBuilder struct {
	record domain.MatchRecord
	links  []string
}

// NewRecordBuilder creates a new RecordBuilder with default values
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		record: domain.MatchRecord{
			GameKind: domain.DefaultGameKind,
			Opponent: fmt.Sprintf("opponent_%s", uuid.New().String()[:8]),
			Outcome:  domain.OutcomeUnknown,
		},
	}
}

// WithOpponent sets the opponent name
func (b *RecordBuilder) WithOpponent(name string) *RecordBuilder {
	b.record.Opponent = name
	return b
}

// WithGameKind sets the game kind
func (b *RecordBuilder) WithGameKind(kind string) *RecordBuilder {
	b.record.GameKind = kind
	return b
}

// WithFactions sets both factions
func (b *RecordBuilder) WithFactions(self, opponent string) *RecordBuilder {
	b.record.SelfFaction = Str(self)
	b.record.OpponentFaction = Str(opponent)
	return b
}

// WithDetachments sets both detachments
func (b *RecordBuilder) WithDetachments(self, opponent string) *RecordBuilder {
	b.record.SelfDetachment = Str(self)
	b.record.OpponentDetachment = Str(opponent)
	return b
}

// WithScores sets both scores and the outcome they resolve to
func (b *RecordBuilder) WithScores(self, opponent int) *RecordBuilder {
	b.record.SelfScore = Int(self)
	b.record.OpponentScore = Int(opponent)
	b.record.Outcome = domain.ResolveOutcome(b.record.SelfScore, b.record.OpponentScore)
	return b
}

// WithPlayedAt sets the date the game was played
func (b *RecordBuilder) WithPlayedAt(at time.Time) *RecordBuilder {
	at = at.UTC()
	b.record.PlayedAt = &at
	return b
}

// WithRecordedAt sets the creation timestamp
func (b *RecordBuilder) WithRecordedAt(at time.Time) *RecordBuilder {
	b.record.RecordedAt = at.UTC()
	return b
}

// WithNotes sets the free-text notes
func (b *RecordBuilder) WithNotes(notes string) *RecordBuilder {
	b.record.Notes = Str(notes)
	return b
}

// WithPhaseNotes sets the annotation of one phase
func (b *RecordBuilder) WithPhaseNotes(phase domain.Phase, notes string) *RecordBuilder {
	_, field := b.record.PhaseFields(phase)
	*field = Str(notes)
	return b
}

// WithPhasePhoto sets the photo link of one phase
func (b *RecordBuilder) WithPhasePhoto(phase domain.Phase, link string) *RecordBuilder {
	field, _ := b.record.PhaseFields(phase)
	*field = Str(link)
	return b
}

// WithMediaLinks sets the media links
func (b *RecordBuilder) WithMediaLinks(links ...string) *RecordBuilder {
	b.links = links
	return b
}

// Record returns the unsaved record
func (b *RecordBuilder) Record() *domain.MatchRecord {
	record := b.record
	record.MediaLinks = domain.MediaLinksJSON(b.links)
	return &record
}

// Build creates the record in the database, bypassing the fallback ladder
func (b *RecordBuilder) Build(t *testing.T, db *gorm.DB) *domain.MatchRecord {
	t.Helper()

	record := b.Record()
	record.ID = uuid.New()
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create record: %v", err)
	}

	return record
}

// SeedRecords creates N test records in the database
func SeedRecords(t *testing.T, db *gorm.DB, count int) []*domain.MatchRecord {
	t.Helper()

	records := make([]*domain.MatchRecord, count)
	for i := 0; i < count; i++ {
		records[i] = NewRecordBuilder().
			WithOpponent(fmt.Sprintf("Opponent %d", i)).
			Build(t, db)
	}
	return records
}

// RecordResponse matches the API record response
type RecordResponse struct {
	Record  domain.MatchRecord `json:"record"`
	Warning string             `json:"warning,omitempty"`
}

// CreateJSONRequest creates an HTTP request with a JSON body
func CreateJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateUploadRequest creates a multipart request carrying one file field
func CreateUploadRequest(t *testing.T, url, field, filename string, content []byte, extra map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range extra {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field %s: %v", k, err)
		}
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// PDFContent is the smallest body mimetype detects as application/pdf
var PDFContent = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

// PNGContent starts with the PNG signature
var PNGContent = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}, make([]byte, 16)...)
