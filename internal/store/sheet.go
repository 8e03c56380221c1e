package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mckinnonit/mckinnonville/internal/services"
	"github.com/mckinnonit/mckinnonville/internal/sheets"
)

// Sheet layout. Citizen data rows start at row 3 (two header rows).
const (
	citizensSheet     = "Citizens"
	citizensFirstRow  = 3
	mapSheet          = "Map"
	occupationsSheet  = "Occupations"
	villagesSheet     = "Villages"
	housesSheet       = "Houses"
	questionsSheet    = "Questions"
	voteOptionsSheet  = "Ordinance Votes"
	setupSheet        = "Setup"
	quizWeekColumn    = "M"
	quizAttemptColumn = "N"
)

// voteColumns maps a week number to its pre-allocated column on the
// citizen row.
var voteColumns = map[int]string{
	1: "O", 2: "P", 3: "Q", 4: "R", 5: "S", 6: "T", 7: "U", 8: "V", 9: "W",
}

// SheetStore reads and writes game state in the external spreadsheet
// store. Rows are located by client-side linear scan; the store offers no
// server-side indexing.
type SheetStore struct {
	client  *sheets.Client
	dataID  string
	mapID   string
	timeout time.Duration
}

func NewSheetStore(client *sheets.Client, dataSpreadsheetID, mapSpreadsheetID string) *SheetStore {
	return &SheetStore{
		client:  client,
		dataID:  dataSpreadsheetID,
		mapID:   mapSpreadsheetID,
		timeout: 20 * time.Second,
	}
}

func (s *SheetStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// citizenRow locates a citizen's sheet row by email. Returns 0 when the
// email is absent.
func (s *SheetStore) citizenRow(ctx context.Context, email string) (int, []string, error) {
	rng := fmt.Sprintf("%s!A%d:N", citizensSheet, citizensFirstRow)
	rows, err := s.client.GetRange(ctx, s.dataID, rng)
	if err != nil {
		return 0, nil, err
	}
	want := strings.ToLower(strings.TrimSpace(email))
	for i, row := range rows {
		if len(row) > 1 && strings.ToLower(strings.TrimSpace(row[1])) == want {
			return citizensFirstRow + i, row, nil
		}
	}
	return 0, nil, nil
}

func (s *SheetStore) GetCitizen(email string) (*services.Citizen, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	row, values, err := s.citizenRow(ctx, email)
	if err != nil {
		return nil, upstream(err)
	}
	if row == 0 {
		return nil, nil
	}
	return citizenFromRow(values), nil
}

func (s *SheetStore) ListCitizens() ([]*services.Citizen, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rng := fmt.Sprintf("%s!A%d:N", citizensSheet, citizensFirstRow)
	rows, err := s.client.GetRange(ctx, s.dataID, rng)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]*services.Citizen, 0, len(rows))
	for _, row := range rows {
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			out = append(out, citizenFromRow(row))
		}
	}
	return out, nil
}

func (s *SheetStore) AppendCitizen(c *services.Citizen) error {
	ctx, cancel := s.ctx()
	defer cancel()
	row := []string{
		c.Name, c.Email, c.Plot, c.UserID, c.SpaceID, c.House,
		c.Occupation, strconv.Itoa(c.OccupationLevel), strconv.Itoa(c.Gold),
	}
	if err := s.client.AppendRow(ctx, s.dataID, citizensSheet+"!A:W", row); err != nil {
		return upstream(err)
	}
	return nil
}

func (s *SheetStore) UpdateCitizenProgress(email string, level, gold int) error {
	ctx, cancel := s.ctx()
	defer cancel()
	row, _, err := s.citizenRow(ctx, email)
	if err != nil {
		return upstream(err)
	}
	if row == 0 {
		return services.NewNotFoundError(fmt.Sprintf("no citizen row for %s", email))
	}
	rng := fmt.Sprintf("%s!H%d:I%d", citizensSheet, row, row)
	if err := s.client.UpdateCells(ctx, s.dataID, rng, [][]string{{strconv.Itoa(level), strconv.Itoa(gold)}}); err != nil {
		return upstream(err)
	}
	return nil
}

func (s *SheetStore) GetQuizAttempts(email string, week int) (int, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	row, values, err := s.citizenRow(ctx, email)
	if err != nil {
		return 0, upstream(err)
	}
	if row == 0 {
		return 0, services.NewNotFoundError(fmt.Sprintf("no citizen row for %s", email))
	}
	// Columns M and N hold (week, attempts); a stale week reads as zero.
	recordedWeek := cellInt(values, 12)
	if recordedWeek != week {
		return 0, nil
	}
	return cellInt(values, 13), nil
}

func (s *SheetStore) SetQuizAttempts(email string, week, count int) error {
	ctx, cancel := s.ctx()
	defer cancel()
	row, _, err := s.citizenRow(ctx, email)
	if err != nil {
		return upstream(err)
	}
	if row == 0 {
		return services.NewNotFoundError(fmt.Sprintf("no citizen row for %s", email))
	}
	rng := fmt.Sprintf("%s!%s%d:%s%d", citizensSheet, quizWeekColumn, row, quizAttemptColumn, row)
	if err := s.client.UpdateCells(ctx, s.dataID, rng, [][]string{{strconv.Itoa(week), strconv.Itoa(count)}}); err != nil {
		return upstream(err)
	}
	return nil
}

func (s *SheetStore) GetHouse(username string) (string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.dataID, housesSheet+"!A:B")
	if err != nil {
		return "", upstream(err)
	}
	want := strings.ToLower(strings.TrimSpace(username))
	for _, row := range rows {
		if len(row) > 1 && strings.ToLower(strings.TrimSpace(row[0])) == want {
			return row[1], nil
		}
	}
	return "", nil
}

func (s *SheetStore) GetVillage(name string) (*services.Village, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.dataID, villagesSheet+"!A3:H")
	if err != nil {
		return nil, upstream(err)
	}
	for _, row := range rows {
		if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), name) {
			return &services.Village{
				Name:       row[0],
				Population: cellInt(row, 1),
				Gold:       cellInt(row, 2),
				Education:  cellFloat(row, 3),
				Health:     cellFloat(row, 4),
				Happiness:  cellFloat(row, 5),
				TaxRate:    cellFloat(row, 6),
				Prosperity: cellFloat(row, 7),
			}, nil
		}
	}
	return nil, nil
}

func (s *SheetStore) ListOccupations() ([]*services.Occupation, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.dataID, occupationsSheet+"!A2:P")
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]*services.Occupation, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			continue
		}
		occ := &services.Occupation{
			Icon:        cellString(row, 0),
			Name:        cellString(row, 1),
			Description: cellString(row, 2),
			Subjects:    splitSubjects(cellString(row, 3)),
			Education:   cellFloat(row, 4),
			Health:      cellFloat(row, 5),
			Happiness:   cellFloat(row, 6),
			ImageURL:    cellString(row, 7),
			Salary: services.Salary{
				Lower: cellFloat(row, 8),
				Upper: cellFloat(row, 9),
			},
		}
		for i := 10; i < len(row); i++ {
			occ.Salary.Steps = append(occ.Salary.Steps, cellInt(row, i))
		}
		out = append(out, occ)
	}
	return out, nil
}

func (s *SheetStore) ListPlotMarkers() (map[string]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.mapID, mapSheet)
	if err != nil {
		return nil, upstream(err)
	}
	out := map[string]string{}
	for i, row := range rows {
		for j, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			out[sheets.CellRef(j+1, i+1)] = cell
		}
	}
	return out, nil
}

func (s *SheetStore) GetPlotMarker(ref string) (string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.mapID, mapSheet+"!"+ref)
	if err != nil {
		return "", upstream(err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}

func (s *SheetStore) SetPlotMarker(ref, marker string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.UpdateCell(ctx, s.mapID, mapSheet+"!"+ref, marker); err != nil {
		return upstream(err)
	}
	return nil
}

// CompareAndSetPlotMarker re-reads the cell immediately before writing.
// The store offers no transactional write, so a small race window remains;
// the re-read shrinks it from the whole free-list scan to one round trip.
func (s *SheetStore) CompareAndSetPlotMarker(ref, old, marker string) (bool, error) {
	current, err := s.GetPlotMarker(ref)
	if err != nil {
		return false, err
	}
	if current != old {
		return false, nil
	}
	return true, s.SetPlotMarker(ref, marker)
}

func (s *SheetStore) ListQuestions() ([]*services.Question, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.dataID, questionsSheet+"!A2:I")
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]*services.Question, 0, len(rows))
	for _, row := range rows {
		if len(row) < 9 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		out = append(out, &services.Question{
			ID:      row[0],
			Subject: row[1],
			Level:   cellInt(row, 2),
			Text:    row[3],
			Options: []string{row[4], row[5], row[6], row[7]},
			Answer:  row[8],
		})
	}
	return out, nil
}

func (s *SheetStore) ListVoteOptions() ([]*services.VoteOption, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.dataID, voteOptionsSheet+"!A2:D")
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]*services.VoteOption, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		out = append(out, &services.VoteOption{
			Week:        cellInt(row, 0),
			ID:          row[1],
			Name:        row[2],
			Description: row[3],
		})
	}
	return out, nil
}

func (s *SheetStore) GetVote(email string, week int) (string, error) {
	col, ok := voteColumns[week]
	if !ok {
		return "", services.NewInvalidError(fmt.Sprintf("week %d has no vote slot", week))
	}
	ctx, cancel := s.ctx()
	defer cancel()
	row, _, err := s.citizenRow(ctx, email)
	if err != nil {
		return "", upstream(err)
	}
	if row == 0 {
		return "", services.NewNotFoundError(fmt.Sprintf("no citizen row for %s", email))
	}
	rng := fmt.Sprintf("%s!%s%d", citizensSheet, col, row)
	rows, err := s.client.GetRange(ctx, s.dataID, rng)
	if err != nil {
		return "", upstream(err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}

func (s *SheetStore) SetVote(email string, week int, option string) error {
	col, ok := voteColumns[week]
	if !ok {
		return services.NewInvalidError(fmt.Sprintf("week %d has no vote slot", week))
	}
	ctx, cancel := s.ctx()
	defer cancel()
	row, _, err := s.citizenRow(ctx, email)
	if err != nil {
		return upstream(err)
	}
	if row == 0 {
		return services.NewNotFoundError(fmt.Sprintf("no citizen row for %s", email))
	}
	rng := fmt.Sprintf("%s!%s%d", citizensSheet, col, row)
	if err := s.client.UpdateCell(ctx, s.dataID, rng, option); err != nil {
		return upstream(err)
	}
	return nil
}

func (s *SheetStore) ListWeekSchedule() ([]services.WeekEntry, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.client.GetRange(ctx, s.dataID, setupSheet+"!A2:D")
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]services.WeekEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			continue
		}
		out = append(out, services.WeekEntry{
			Week:       cellInt(row, 0),
			StartDate:  row[1],
			NotifyTime: cellString(row, 2),
			Message:    cellString(row, 3),
		})
	}
	return out, nil
}

func citizenFromRow(row []string) *services.Citizen {
	return &services.Citizen{
		Name:            cellString(row, 0),
		Email:           cellString(row, 1),
		Plot:            cellString(row, 2),
		UserID:          cellString(row, 3),
		SpaceID:         cellString(row, 4),
		House:           cellString(row, 5),
		Occupation:      cellString(row, 6),
		OccupationLevel: cellInt(row, 7),
		Gold:            cellInt(row, 8),
	}
}

func cellString(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func cellInt(row []string, i int) int {
	n, _ := strconv.Atoi(cellString(row, i))
	return n
}

func cellFloat(row []string, i int) float64 {
	f, _ := strconv.ParseFloat(cellString(row, i), 64)
	return f
}

func splitSubjects(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func upstream(err error) error {
	if _, ok := services.AsServiceError(err); ok {
		return err
	}
	return services.NewUpstreamError(err.Error())
}
