package postgres

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dom/wartracker/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE undefined_column
const pgUndefinedColumn = "42703"

// Columns that were part of the very first schema; a write can never
// succeed without them.
var requiredColumns = map[string]bool{
	"id":          true,
	"recorded_at": true,
	"game_kind":   true,
	"opponent":    true,
	"outcome":     true,
}

var optionalColumns = map[string]bool{
	"played_at":             true,
	"points":                true,
	"mission_pack":          true,
	"primary_mission":       true,
	"deployment":            true,
	"terrain_layout":        true,
	"self_faction":          true,
	"self_detachment":       true,
	"self_doc_link":         true,
	"self_list_summary":     true,
	"opponent_faction":      true,
	"opponent_detachment":   true,
	"opponent_doc_link":     true,
	"opponent_list_summary": true,
	"self_score":            true,
	"opponent_score":        true,
	"score_sheet_link":      true,
	"notes":                 true,
	"media_links":           true,
}

var phaseColumns = domain.PhaseColumns()

func init() {
	for _, c := range phaseColumns {
		optionalColumns[c] = true
	}
}

// Dropped in order when the database refuses a column without naming it.
var fallbackGroups = [][]string{
	phaseColumns,
	{"self_list_summary", "opponent_list_summary"},
	{"score_sheet_link"},
}

var columnNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`column "?([A-Za-z0-9_."]+?)"? (?:of relation "?[A-Za-z0-9_.]+"? )?does not exist`),
	regexp.MustCompile(`has no column named "?([A-Za-z0-9_]+)`),
	regexp.MustCompile(`no such column: "?([A-Za-z0-9_.]+)`),
}

// missingColumn reports whether err means a column is absent from the
// schema, and the column name when the driver names it.
func missingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUndefinedColumn {
			return "", false
		}
		msg = pgErr.Message
	}

	for _, re := range columnNamePatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			return bareColumn(m[1]), true
		}
	}

	if pgErr != nil {
		return "", true
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "column") && strings.Contains(lower, "does not exist") {
		return "", true
	}
	return "", false
}

func bareColumn(name string) string {
	name = strings.Trim(name, `"`)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, `"`)
}

func isPhaseColumn(column string) bool {
	for _, c := range phaseColumns {
		if c == column {
			return true
		}
	}
	return false
}

// fallbackLadder tracks which columns have been given up on so far.
type fallbackLadder struct {
	omitted   []string
	seen      map[string]bool
	nextGroup int
}

func newFallbackLadder() *fallbackLadder {
	return &fallbackLadder{seen: make(map[string]bool)}
}

// next picks the columns to drop for a missing-column error. An empty result
// means the write cannot be degraded any further.
func (l *fallbackLadder) next(column string) []string {
	if column != "" {
		switch {
		case requiredColumns[column], !optionalColumns[column], l.seen[column]:
			return nil
		case isPhaseColumn(column):
			return l.drop(phaseColumns)
		default:
			return l.drop([]string{column})
		}
	}

	for l.nextGroup < len(fallbackGroups) {
		group := fallbackGroups[l.nextGroup]
		l.nextGroup++
		if dropped := l.drop(group); len(dropped) > 0 {
			return dropped
		}
	}
	return nil
}

func (l *fallbackLadder) drop(columns []string) []string {
	var dropped []string
	for _, c := range columns {
		if l.seen[c] {
			continue
		}
		l.seen[c] = true
		l.omitted = append(l.omitted, c)
		dropped = append(dropped, c)
	}
	return dropped
}

func (l *fallbackLadder) isOmitted(column string) bool {
	return l.seen[column]
}

// writeWithFallback retries write with a growing set of omitted columns for as
// long as the failure is a missing optional column. onDrop runs after each
// step and may adjust what the next attempt writes.
func writeWithFallback(write func(omit []string) error, onDrop func(l *fallbackLadder, dropped []string) error) ([]string, error) {
	ladder := newFallbackLadder()
	for {
		err := write(append([]string(nil), ladder.omitted...))
		if err == nil {
			return ladder.omitted, nil
		}

		column, ok := missingColumn(err)
		if !ok {
			return ladder.omitted, err
		}

		dropped := ladder.next(column)
		if len(dropped) == 0 {
			return ladder.omitted, errors.Join(domain.ErrSchemaMismatch, err)
		}

		if onDrop != nil {
			if err := onDrop(ladder, dropped); err != nil {
				return ladder.omitted, err
			}
		}
	}
}
