// Package notescodec embeds per-phase annotations inside the free-text notes
// field when the database has no dedicated columns for them.
package notescodec

import (
	"encoding/json"
	"strings"

	"github.com/dom/wartracker/internal/domain"
)

const (
	StartMarker = "[[wartracker:phase-notes]]"
	EndMarker   = "[[/wartracker:phase-notes]]"
)

// PhaseNotes holds the six phase annotation texts.
type PhaseNotes struct {
	Deployment string `json:"deployment,omitempty"`
	Turn1      string `json:"t1,omitempty"`
	Turn2      string `json:"t2,omitempty"`
	Turn3      string `json:"t3,omitempty"`
	Turn4      string `json:"t4,omitempty"`
	Turn5      string `json:"t5,omitempty"`
}

func (p PhaseNotes) IsEmpty() bool {
	return p == PhaseNotes{}
}

func (p *PhaseNotes) field(phase domain.Phase) *string {
	switch phase {
	case domain.PhaseDeployment:
		return &p.Deployment
	case domain.PhaseTurn1:
		return &p.Turn1
	case domain.PhaseTurn2:
		return &p.Turn2
	case domain.PhaseTurn3:
		return &p.Turn3
	case domain.PhaseTurn4:
		return &p.Turn4
	case domain.PhaseTurn5:
		return &p.Turn5
	}
	return nil
}

func (p PhaseNotes) Get(phase domain.Phase) string {
	if f := p.field(phase); f != nil {
		return *f
	}
	return ""
}

func (p *PhaseNotes) Set(phase domain.Phase, text string) {
	if f := p.field(phase); f != nil {
		*f = text
	}
}

// Merge returns p with every non-empty annotation of other written over it.
func (p PhaseNotes) Merge(other PhaseNotes) PhaseNotes {
	for _, phase := range domain.AllPhases {
		if v := other.Get(phase); v != "" {
			p.Set(phase, v)
		}
	}
	return p
}

// Encode wraps the compact JSON form of p in the sentinel pair. An empty
// payload encodes to "". Brackets are escaped so the JSON never contains a
// marker.
func Encode(p PhaseNotes) string {
	if p.IsEmpty() {
		return ""
	}
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return StartMarker + strings.ReplaceAll(string(data), "[", `\u005b`) + EndMarker
}

// Embed appends the encoded payload to notes, separated by a blank line.
func Embed(notes string, p PhaseNotes) string {
	block := Encode(p)
	if block == "" {
		return notes
	}
	if strings.TrimSpace(notes) == "" {
		return block
	}
	return notes + "\n\n" + block
}

// Decode extracts the payload of the last sentinel block and returns the text
// with that block removed, along with any older blocks that still parse. A
// last block that does not parse yields a nil payload. Marker text that is not
// part of a block is left alone.
func Decode(text string) (*PhaseNotes, string) {
	start, end, ok := lastBlock(text)
	if !ok {
		return nil, strings.TrimSpace(text)
	}

	payload, _ := parsePayload(text[start+len(StartMarker) : end])
	rest := stripOlderBlocks(text[:start]) + text[end+len(EndMarker):]
	return payload, strings.TrimSpace(rest)
}

// HasPayload reports whether text carries at least one sentinel block.
func HasPayload(text string) bool {
	_, _, ok := lastBlock(text)
	return ok
}

// lastBlock anchors on the last end marker and the start marker closest
// before it. Encoded payloads never contain a marker, so this is the block
// Embed wrote last even when the surrounding notes mention the markers.
func lastBlock(text string) (start, end int, ok bool) {
	end = strings.LastIndex(text, EndMarker)
	if end < 0 {
		return 0, 0, false
	}
	start = strings.LastIndex(text[:end], StartMarker)
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

func stripOlderBlocks(text string) string {
	limit := len(text)
	for {
		start, end, ok := lastBlock(text[:limit])
		if !ok {
			return text
		}
		if _, parsed := parsePayload(text[start+len(StartMarker) : end]); parsed {
			text = text[:start] + text[end+len(EndMarker):]
		}
		limit = start
	}
}

func parsePayload(body string) (*PhaseNotes, bool) {
	var p PhaseNotes
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, false
	}
	return &p, true
}
