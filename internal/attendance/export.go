package attendance

import (
	"context"
	"sort"
	"time"

	"classattend/internal/auth"
)

// SessionColumn is one matrix column, keyed by session identity rather
// than positional letter offsets.
type SessionColumn struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
}

// MatrixRow is one student's row in the attendance matrix.
type MatrixRow struct {
	MatricNumber string `json:"matric_number"`
	// Present is keyed by session id.
	Present map[string]bool `json:"present"`
}

// ScoreRow summarizes one student's attendance record.
type ScoreRow struct {
	MatricNumber string  `json:"matric_number"`
	Present      int     `json:"present"`
	Absent       int     `json:"absent"`
	Total        int     `json:"total"`
	Mark         float64 `json:"mark"`
}

// Report reduces a course's committed check-ins into an attendance
// matrix and a score sheet.
type Report struct {
	Columns []SessionColumn `json:"columns"`
	Rows    []MatrixRow     `json:"attendance_sheet"`
	Scores  []ScoreRow      `json:"score_sheet"`
}

const reportDateFormat = "02 Jan 2006"

// ExportReport builds the report for a course. markScale scales the
// normalized mark (present/total); values below 1 fall back to 1.
func (s *Service) ExportReport(ctx context.Context, id auth.Identity, courseID string, markScale float64) (Report, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return Report{}, err
	}
	if _, err := s.ownedCourse(ctx, id, courseID); err != nil {
		return Report{}, err
	}
	if markScale < 1 {
		markScale = 1
	}

	sessions, err := s.sessions.ListByCourse(ctx, courseID)
	if err != nil {
		return Report{}, err
	}
	checkins, err := s.checkins.ListCommittedByCourse(ctx, courseID)
	if err != nil {
		return Report{}, err
	}

	return buildReport(sessions, checkins, markScale), nil
}

func buildReport(sessions []Session, checkins []CheckIn, markScale float64) Report {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	columns := make([]SessionColumn, 0, len(sessions))
	for _, sess := range sessions {
		columns = append(columns, SessionColumn{
			SessionID: sess.ID,
			Date:      sess.CreatedAt.In(time.UTC).Format(reportDateFormat),
		})
	}

	present := make(map[string]map[string]bool) // matric -> session id set
	for _, c := range checkins {
		if present[c.MatricNumber] == nil {
			present[c.MatricNumber] = make(map[string]bool)
		}
		present[c.MatricNumber][c.SessionID] = true
	}

	matrics := make([]string, 0, len(present))
	for m := range present {
		matrics = append(matrics, m)
	}
	sort.Strings(matrics)

	total := len(sessions)
	rows := make([]MatrixRow, 0, len(matrics))
	scores := make([]ScoreRow, 0, len(matrics))
	for _, m := range matrics {
		rows = append(rows, MatrixRow{MatricNumber: m, Present: present[m]})

		count := len(present[m])
		var mark float64
		if total > 0 {
			mark = float64(count) / float64(total) * markScale
		}
		scores = append(scores, ScoreRow{
			MatricNumber: m,
			Present:      count,
			Absent:       total - count,
			Total:        total,
			Mark:         mark,
		})
	}

	return Report{Columns: columns, Rows: rows, Scores: scores}
}
