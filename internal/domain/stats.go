package domain

import "math"

// RecordStats summarizes the outcomes of a filtered set of records.
type RecordStats struct {
	Total   int `json:"total"`
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
	Draws   int `json:"draws"`
	Unknown int `json:"unknown"`
	// WinRate is wins over all records as a rounded percentage.
	WinRate int `json:"winRate"`
}

// NewRecordStats builds the summary from per-outcome counts. Anything that
// is not W, L or D counts as unknown.
func NewRecordStats(counts map[Outcome]int) *RecordStats {
	stats := &RecordStats{}
	for outcome, n := range counts {
		stats.Total += n
		switch outcome {
		case OutcomeWin:
			stats.Wins += n
		case OutcomeLoss:
			stats.Losses += n
		case OutcomeDraw:
			stats.Draws += n
		default:
			stats.Unknown += n
		}
	}
	if stats.Total > 0 {
		stats.WinRate = int(math.Round(float64(stats.Wins) / float64(stats.Total) * 100))
	}
	return stats
}
