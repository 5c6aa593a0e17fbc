package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/testing-system/testing-service/internal/errors"
	"github.com/testing-system/testing-service/internal/events"
	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/validator"
)

// ImportService reconciles batches of (test, question) definitions into the
// database. Identical questions are matched by content fingerprint and
// reused instead of duplicated; in update mode, questions dropped from a
// test are unlinked and deleted once no other test references them.
type ImportService interface {
	ImportBatch(ctx context.Context, rows []models.ImportRow, updateMode bool, actorID uint) (*models.ImportStats, error)
	ImportCSV(ctx context.Context, reader io.Reader, updateMode bool, actorID uint) (*models.ImportStats, error)
	ImportExcel(ctx context.Context, reader io.Reader, updateMode bool, actorID uint) (*models.ImportStats, error)
}

type importService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewImportService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ImportService {
	return &importService{
		repo:      repo,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

// csvDelimiter separates columns; listDelimiter separates items inside the
// choices and correct answers columns.
const (
	csvDelimiter  = ';'
	listDelimiter = "|"
)

// ===== BATCH RECONCILIATION =====

// ImportBatch reconciles all rows inside one transaction. Validation runs
// over the entire batch first, so a bad row aborts the import before any
// write happens.
func (s *importService) ImportBatch(ctx context.Context, rows []models.ImportRow, updateMode bool, actorID uint) (*models.ImportStats, error) {
	s.logger.Info("Starting import",
		"rows", len(rows),
		"update_mode", updateMode,
		"actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.validateRows(rows); err != nil {
		return nil, err
	}

	groups := groupRowsByTest(rows)
	stats := &models.ImportStats{}

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		for _, group := range groups {
			if err := s.reconcileTest(ctx, tx, group, updateMode, stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishImported(ctx, stats, updateMode)
	s.logger.Info("Import finished",
		"tests_created", stats.TestsCreated,
		"tests_updated", stats.TestsUpdated,
		"questions_created", stats.QuestionsCreated,
		"questions_reused", stats.QuestionsReused,
		"questions_removed", stats.QuestionsRemoved,
		"duplicates_resolved", stats.DuplicatesResolved)
	return stats, nil
}

// ImportCSV parses a semicolon-delimited file and reconciles it. A UTF-8
// BOM at the start of the file is tolerated.
func (s *importService) ImportCSV(ctx context.Context, reader io.Reader, updateMode bool, actorID uint) (*models.ImportStats, error) {
	rows, err := parseCSV(reader)
	if err != nil {
		return nil, err
	}
	return s.ImportBatch(ctx, rows, updateMode, actorID)
}

// ImportExcel parses the first sheet of an xlsx workbook and reconciles it.
func (s *importService) ImportExcel(ctx context.Context, reader io.Reader, updateMode bool, actorID uint) (*models.ImportStats, error) {
	rows, err := parseExcel(reader)
	if err != nil {
		return nil, err
	}
	return s.ImportBatch(ctx, rows, updateMode, actorID)
}

// ===== PER-TEST RECONCILIATION =====

type testGroup struct {
	title       string
	description string
	rows        []models.ImportRow
}

// groupRowsByTest splits the batch into per-test groups, preserving the
// order titles first appear in.
func groupRowsByTest(rows []models.ImportRow) []*testGroup {
	var groups []*testGroup
	byTitle := make(map[string]*testGroup)
	for _, row := range rows {
		group, ok := byTitle[row.TestTitle]
		if !ok {
			group = &testGroup{title: row.TestTitle, description: row.TestDescription}
			byTitle[row.TestTitle] = group
			groups = append(groups, group)
		}
		if group.description == "" && row.TestDescription != "" {
			group.description = row.TestDescription
		}
		group.rows = append(group.rows, row)
	}
	return groups
}

func (s *importService) reconcileTest(ctx context.Context, tx repositories.Repository, group *testGroup, updateMode bool, stats *models.ImportStats) error {
	test, err := tx.Tests().GetByTitle(ctx, group.title)
	if err != nil && !repositories.IsNotFoundError(err) {
		return err
	}

	switch {
	case test == nil || repositories.IsNotFoundError(err):
		test = &models.Test{Title: group.title}
		if group.description != "" {
			test.Description = &group.description
		}
		if err := tx.Tests().Create(ctx, test); err != nil {
			return fmt.Errorf("failed to create test %q: %w", group.title, err)
		}
		stats.TestsCreated++
	case updateMode:
		if group.description != "" {
			test.Description = &group.description
		}
		if err := tx.Tests().Update(ctx, test); err != nil {
			return fmt.Errorf("failed to update test %q: %w", group.title, err)
		}
		stats.TestsUpdated++
	default:
		// Create-only mode never rewrites the existing row, but its
		// questions are still resolved and linked below.
	}

	existing, err := tx.TestQuestions().GetByTestOrdered(ctx, test.ID)
	if err != nil {
		return err
	}
	linkByQuestion := make(map[uint]*models.TestQuestion, len(existing))
	for _, link := range existing {
		linkByQuestion[link.QuestionID] = link
	}

	type slot struct {
		qID   uint
		link  *models.TestQuestion // nil until created
		order int
	}

	imported := make(map[uint]struct{}, len(group.rows))
	var batch []*slot
	for _, row := range group.rows {
		question, err := s.resolveQuestion(ctx, tx, row, stats)
		if err != nil {
			return err
		}
		if _, dup := imported[question.ID]; dup {
			continue
		}
		imported[question.ID] = struct{}{}
		batch = append(batch, &slot{
			qID:   question.ID,
			link:  linkByQuestion[question.ID],
			order: row.Order,
		})
	}

	if updateMode {
		if err := s.pruneStaleLinks(ctx, tx, existing, imported, stats); err != nil {
			return err
		}
	}

	// Simulate the final arrangement in memory: links outside the batch
	// keep their positions, and each batch row lands at its declared order,
	// shifting the occupant and everything above it on collision.
	var arrangement []*slot
	for _, link := range existing {
		if _, inBatch := imported[link.QuestionID]; inBatch {
			continue
		}
		if updateMode {
			// Pruned above.
			continue
		}
		arrangement = append(arrangement, &slot{qID: link.QuestionID, link: link, order: link.Order})
	}
	for _, placed := range batch {
		for _, occupant := range arrangement {
			if occupant.order == placed.order {
				for _, e := range arrangement {
					if e.order >= placed.order {
						e.order++
					}
				}
				break
			}
		}
		arrangement = append(arrangement, placed)
	}
	sort.Slice(arrangement, func(i, j int) bool { return arrangement[i].order < arrangement[j].order })

	// Two-pass write keeps the unique position index satisfied throughout:
	// park every link above the live range, then compact to 0..N-1.
	parkBase := len(existing) + len(arrangement)
	if n := len(existing); n > 0 && existing[n-1].Order+1 > parkBase {
		parkBase = existing[n-1].Order + 1
	}
	for i, e := range arrangement {
		if e.link == nil {
			e.link = &models.TestQuestion{
				TestID:     test.ID,
				QuestionID: e.qID,
				Order:      parkBase + i,
			}
			if err := tx.TestQuestions().Create(ctx, e.link); err != nil {
				return err
			}
		} else if err := tx.TestQuestions().UpdateOrder(ctx, e.link.ID, parkBase+i); err != nil {
			return err
		}
	}
	for i, e := range arrangement {
		if err := tx.TestQuestions().UpdateOrder(ctx, e.link.ID, i); err != nil {
			return err
		}
	}
	return nil
}

// resolveQuestion finds an existing question with identical content or
// creates a new one. When several identical questions already exist, the
// oldest wins and the rest are counted as resolved duplicates.
func (s *importService) resolveQuestion(ctx context.Context, tx repositories.Repository, row models.ImportRow, stats *models.ImportStats) (*models.Question, error) {
	fingerprint := models.ComputeFingerprint(row.QuestionText, row.QuestionType, row.Choices, row.CorrectAnswers)
	matches, err := tx.Questions().FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	if len(matches) > 0 {
		stats.QuestionsReused++
		if len(matches) > 1 {
			stats.DuplicatesResolved += len(matches) - 1
		}
		return matches[0], nil
	}

	question := &models.Question{
		Text:           row.QuestionText,
		Type:           row.QuestionType,
		Choices:        row.Choices,
		CorrectAnswers: row.CorrectAnswers,
	}
	if err := tx.Questions().Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question %q: %w", row.QuestionText, err)
	}
	stats.QuestionsCreated++
	return question, nil
}

// pruneStaleLinks removes links to questions absent from the imported set
// and deletes any question left with zero references.
func (s *importService) pruneStaleLinks(ctx context.Context, tx repositories.Repository, existing []*models.TestQuestion, imported map[uint]struct{}, stats *models.ImportStats) error {
	for _, link := range existing {
		if _, ok := imported[link.QuestionID]; ok {
			continue
		}
		if err := tx.TestQuestions().Delete(ctx, link.ID); err != nil {
			return err
		}

		refs, err := tx.TestQuestions().CountByQuestion(ctx, link.QuestionID)
		if err != nil {
			return err
		}
		if refs == 0 {
			if err := tx.Questions().Delete(ctx, link.QuestionID); err != nil {
				return err
			}
			stats.QuestionsRemoved++
		}
	}
	return nil
}

// ===== VALIDATION =====

// validateRows checks every row up front. Missing required fields abort the
// whole import with an error naming the row and fields.
func (s *importService) validateRows(rows []models.ImportRow) error {
	if len(rows) == 0 {
		return NewValidationError("rows", "import contains no rows", nil)
	}

	for i := range rows {
		var missing []string
		if strings.TrimSpace(rows[i].TestTitle) == "" {
			missing = append(missing, "test_title")
		}
		if strings.TrimSpace(rows[i].QuestionText) == "" {
			missing = append(missing, "question_text")
		}
		if rows[i].QuestionType == "" {
			missing = append(missing, "question_type")
		}
		if rows[i].QuestionType.AutoScored() {
			if len(rows[i].Choices) == 0 {
				missing = append(missing, "choices")
			}
			if len(rows[i].CorrectAnswers) == 0 {
				missing = append(missing, "correct_answers")
			}
		}
		if len(missing) > 0 {
			return apperrors.NewMissingFieldsError(i+1, missing)
		}

		if err := s.validator.Validate(&rows[i]); err != nil {
			return fmt.Errorf("row %d: %w", i+1, WrapValidation(err))
		}
	}
	return nil
}

func (s *importService) requireAdmin(ctx context.Context, actorID uint) error {
	user, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.IsAdmin() {
		return NewPermissionError(actorID, 0, "import", "run", "admin role required")
	}
	return nil
}

func (s *importService) publishImported(ctx context.Context, stats *models.ImportStats, updateMode bool) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewTestImportedEvent(*stats, updateMode)); err != nil {
		s.logger.Error("Failed to publish import event", "error", err)
	}
}

// ===== FILE PARSING =====

// parseCSV reads semicolon-delimited rows. The first row is treated as a
// header when it starts with the test_title column name.
func parseCSV(reader io.Reader) ([]models.ImportRow, error) {
	r := csv.NewReader(stripBOM(reader))
	r.Comma = csvDelimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return recordsToRows(records)
}

// parseExcel reads the first sheet of an xlsx workbook.
func parseExcel(reader io.Reader) ([]models.ImportRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "workbook has no sheets", nil)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return recordsToRows(records)
}

// recordsToRows maps raw columns onto import rows. Expected columns:
// test_title, test_description, question_text, question_type, choices,
// correct_answers, question_order. List columns split on "|"; a missing or
// non-numeric order defaults to 0.
func recordsToRows(records [][]string) ([]models.ImportRow, error) {
	// Empty entries mark optional columns.
	columns := []string{"test_title", "", "question_text", "question_type", "choices", "correct_answers"}

	rows := make([]models.ImportRow, 0, len(records))
	for i, record := range records {
		if i == 0 && isHeaderRow(record) {
			continue
		}
		if isEmptyRecord(record) {
			continue
		}
		if len(record) < len(columns) {
			var missing []string
			for idx := len(record); idx < len(columns); idx++ {
				if columns[idx] != "" {
					missing = append(missing, columns[idx])
				}
			}
			return nil, apperrors.NewMissingFieldsError(i+1, missing)
		}

		order := 0
		if len(record) > 6 {
			if parsed, err := strconv.Atoi(strings.TrimSpace(record[6])); err == nil && parsed >= 0 {
				order = parsed
			}
		}
		rows = append(rows, models.ImportRow{
			TestTitle:       strings.TrimSpace(record[0]),
			TestDescription: strings.TrimSpace(record[1]),
			QuestionText:    strings.TrimSpace(record[2]),
			QuestionType:    models.QuestionType(strings.ToLower(strings.TrimSpace(record[3]))),
			Choices:         splitList(record[4]),
			CorrectAnswers:  splitList(record[5]),
			Order:           order,
		})
	}
	return rows, nil
}

func isHeaderRow(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "test_title")
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// splitList splits a |-delimited cell into trimmed items, dropping empties.
func splitList(cell string) []string {
	parts := strings.Split(cell, listDelimiter)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}

// stripBOM removes a UTF-8 byte order mark if the stream starts with one.
func stripBOM(reader io.Reader) io.Reader {
	buffered := make([]byte, 3)
	n, _ := io.ReadFull(reader, buffered)
	if n == 3 && buffered[0] == 0xEF && buffered[1] == 0xBB && buffered[2] == 0xBF {
		return reader
	}
	return io.MultiReader(strings.NewReader(string(buffered[:n])), reader)
}
