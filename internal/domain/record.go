package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const DefaultGameKind = "40k"

// MatchRecord is one logged game session.
type MatchRecord struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	RecordedAt time.Time  `json:"recordedAt" gorm:"not null;index"`
	PlayedAt   *time.Time `json:"playedAt" gorm:"index"`
	GameKind   string     `json:"gameKind" gorm:"not null;default:'40k';index"`
	Opponent   string     `json:"opponent" gorm:"not null"`
	Points     *int       `json:"points"`

	// Mission & table
	MissionPack    *string `json:"missionPack"`
	PrimaryMission *string `json:"primaryMission"`
	Deployment     *string `json:"deployment"`
	TerrainLayout  *string `json:"terrainLayout"`

	// Armies
	SelfFaction         *string `json:"selfFaction"`
	SelfDetachment      *string `json:"selfDetachment"`
	SelfDocLink         *string `json:"selfDocLink"`
	SelfListSummary     *string `json:"selfListSummary"`
	OpponentFaction     *string `json:"opponentFaction"`
	OpponentDetachment  *string `json:"opponentDetachment"`
	OpponentDocLink     *string `json:"opponentDocLink"`
	OpponentListSummary *string `json:"opponentListSummary"`

	// Score
	SelfScore      *int    `json:"selfScore"`
	OpponentScore  *int    `json:"opponentScore"`
	Outcome        Outcome `json:"outcome" gorm:"not null;default:'U'"`
	ScoreSheetLink *string `json:"scoreSheetLink"`

	Notes      *string        `json:"notes"`
	MediaLinks datatypes.JSON `json:"mediaLinks" gorm:"type:jsonb"` // ["https://drive.google.com/..."]

	// Timeline, added after the first deployments of the schema
	DeploymentPhotoLink *string `json:"deploymentPhotoLink"`
	DeploymentNotes     *string `json:"deploymentNotes"`
	T1PhotoLink         *string `json:"t1PhotoLink"`
	T1Notes             *string `json:"t1Notes"`
	T2PhotoLink         *string `json:"t2PhotoLink"`
	T2Notes             *string `json:"t2Notes"`
	T3PhotoLink         *string `json:"t3PhotoLink"`
	T3Notes             *string `json:"t3Notes"`
	T4PhotoLink         *string `json:"t4PhotoLink"`
	T4Notes             *string `json:"t4Notes"`
	T5PhotoLink         *string `json:"t5PhotoLink"`
	T5Notes             *string `json:"t5Notes"`
}

// SortTime is PlayedAt, or RecordedAt when the play date was never given.
func (r *MatchRecord) SortTime() time.Time {
	if r.PlayedAt != nil {
		return *r.PlayedAt
	}
	return r.RecordedAt
}

// Links returns the media links stored on the record. Malformed column
// content reads as an empty list.
func (r *MatchRecord) Links() []string {
	if len(r.MediaLinks) == 0 {
		return []string{}
	}
	var links []string
	if err := json.Unmarshal(r.MediaLinks, &links); err != nil || links == nil {
		return []string{}
	}
	return links
}

// MediaLinksJSON encodes a link list for the media_links column.
func MediaLinksJSON(links []string) datatypes.JSON {
	if links == nil {
		links = []string{}
	}
	data, _ := json.Marshal(links)
	return datatypes.JSON(data)
}

// PhaseFields returns pointers to the photo-link and notes fields of a phase.
func (r *MatchRecord) PhaseFields(p Phase) (photo, notes **string) {
	switch p {
	case PhaseDeployment:
		return &r.DeploymentPhotoLink, &r.DeploymentNotes
	case PhaseTurn1:
		return &r.T1PhotoLink, &r.T1Notes
	case PhaseTurn2:
		return &r.T2PhotoLink, &r.T2Notes
	case PhaseTurn3:
		return &r.T3PhotoLink, &r.T3Notes
	case PhaseTurn4:
		return &r.T4PhotoLink, &r.T4Notes
	case PhaseTurn5:
		return &r.T5PhotoLink, &r.T5Notes
	}
	return nil, nil
}

type Phase string

const (
	PhaseDeployment Phase = "deployment"
	PhaseTurn1      Phase = "t1"
	PhaseTurn2      Phase = "t2"
	PhaseTurn3      Phase = "t3"
	PhaseTurn4      Phase = "t4"
	PhaseTurn5      Phase = "t5"
)

var AllPhases = []Phase{PhaseDeployment, PhaseTurn1, PhaseTurn2, PhaseTurn3, PhaseTurn4, PhaseTurn5}

func (p Phase) PhotoColumn() string { return string(p) + "_photo_link" }
func (p Phase) NotesColumn() string { return string(p) + "_notes" }

// PhotoKey and NotesKey are the JSON keys used on the wire.
func (p Phase) PhotoKey() string { return string(p) + "PhotoLink" }
func (p Phase) NotesKey() string { return string(p) + "Notes" }

// PhaseColumns lists every per-phase column, photos first.
func PhaseColumns() []string {
	cols := make([]string, 0, len(AllPhases)*2)
	for _, p := range AllPhases {
		cols = append(cols, p.PhotoColumn(), p.NotesColumn())
	}
	return cols
}

// RecordPatch is a sparse update keyed by column name. A nil value clears
// the column; an absent key leaves it untouched.
type RecordPatch map[string]any

func (p RecordPatch) Has(column string) bool {
	_, ok := p[column]
	return ok
}

// RecordFilter narrows a record listing. Query is a case-insensitive
// substring matched against the opponent, factions, detachments and notes.
// Stats ignore Limit and Offset.
type RecordFilter struct {
	GameKind string
	Query    string
	Limit    int
	Offset   int
}

// SaveReport describes how far a write had to degrade to fit the schema.
type SaveReport struct {
	DroppedColumns  []string `json:"droppedColumns,omitempty"`
	EmbeddedInNotes bool     `json:"embeddedInNotes,omitempty"`
}

func (r *SaveReport) Degraded() bool {
	return r != nil && (len(r.DroppedColumns) > 0 || r.EmbeddedInNotes)
}

// Warning is empty when nothing degraded.
func (r *SaveReport) Warning() string {
	if !r.Degraded() {
		return ""
	}
	var b strings.Builder
	b.WriteString("record saved; the database schema has not been migrated")
	if len(r.DroppedColumns) > 0 {
		fmt.Fprintf(&b, ", these fields were not persisted: %s", strings.Join(r.DroppedColumns, ", "))
	}
	if r.EmbeddedInNotes {
		b.WriteString("; phase notes were stored inside the notes field")
	}
	return b.String()
}
