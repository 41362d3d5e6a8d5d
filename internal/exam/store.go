package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/academia/grading-backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Exam Papers ─────────────────────────────────────────

func (s *Store) CreatePaper(teacherID int64, req models.CreatePaperRequest) (*models.ExamPaper, error) {
	var paper models.ExamPaper
	err := s.db.QueryRow(
		`INSERT INTO exam_papers (teacher_id, title, subject, total_marks, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, teacher_id, title, COALESCE(subject, ''), total_marks, duration_minutes, status, created_at, updated_at`,
		teacherID, req.Title, nullString(req.Subject), req.TotalMarks, req.DurationMinutes, models.PaperDraft,
	).Scan(&paper.ID, &paper.TeacherID, &paper.Title, &paper.Subject, &paper.TotalMarks,
		&paper.DurationMinutes, &paper.Status, &paper.CreatedAt, &paper.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create paper: %w", err)
	}
	return &paper, nil
}

func (s *Store) GetPaper(paperID int64) (*models.ExamPaper, error) {
	var paper models.ExamPaper
	err := s.db.QueryRow(
		`SELECT id, teacher_id, title, COALESCE(subject, ''), total_marks, duration_minutes, status, created_at, updated_at
		 FROM exam_papers WHERE id = $1`,
		paperID,
	).Scan(&paper.ID, &paper.TeacherID, &paper.Title, &paper.Subject, &paper.TotalMarks,
		&paper.DurationMinutes, &paper.Status, &paper.CreatedAt, &paper.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return &paper, nil
}

func (s *Store) ListPapersByTeacher(teacherID int64) ([]models.ExamPaper, error) {
	rows, err := s.db.Query(
		`SELECT id, teacher_id, title, COALESCE(subject, ''), total_marks, duration_minutes, status, created_at, updated_at
		 FROM exam_papers WHERE teacher_id = $1 ORDER BY created_at DESC`,
		teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var papers []models.ExamPaper
	for rows.Next() {
		var p models.ExamPaper
		if err := rows.Scan(&p.ID, &p.TeacherID, &p.Title, &p.Subject, &p.TotalMarks,
			&p.DurationMinutes, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// UpdatePaperStatus moves a paper to a new status only when the paper is
// still in the expected current status, so two racing callers cannot both
// advance it.
func (s *Store) UpdatePaperStatus(paperID int64, from, to models.PaperStatus) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE exam_papers SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, paperID, from,
	)
	if err != nil {
		return false, fmt.Errorf("update paper status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── Questions ───────────────────────────────────────────

func (s *Store) CreateQuestion(paperID int64, req models.AddQuestionRequest) (*models.Question, error) {
	var q models.Question
	err := s.db.QueryRow(
		`INSERT INTO questions (exam_paper_id, question_number, text, type, marks)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, exam_paper_id, question_number, text, type, marks, created_at`,
		paperID, req.QuestionNumber, req.Text, req.Type, req.Marks,
	).Scan(&q.ID, &q.ExamPaperID, &q.QuestionNumber, &q.Text, &q.Type, &q.Marks, &q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &q, nil
}

func (s *Store) ListQuestions(paperID int64) ([]models.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_paper_id, question_number, text, type, marks, created_at
		 FROM questions WHERE exam_paper_id = $1 ORDER BY question_number`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.ExamPaperID, &q.QuestionNumber, &q.Text, &q.Type, &q.Marks, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) CountQuestions(paperID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE exam_paper_id = $1`, paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// ── Expected Responses ──────────────────────────────────

// ReplaceExpectedResponses swaps the paper's whole marking guide in one
// transaction. Inputs are assumed validated against the paper's questions.
func (s *Store) ReplaceExpectedResponses(ctx context.Context, paperID int64, inputs []models.ExpectedResponseInput, aiGenerated bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM expected_responses WHERE exam_paper_id = $1`, paperID); err != nil {
		return fmt.Errorf("clear expected responses: %w", err)
	}

	for _, in := range inputs {
		var schemeJSON, keywordsJSON interface{}
		if in.MarkingScheme != nil {
			b, err := json.Marshal(in.MarkingScheme)
			if err != nil {
				return fmt.Errorf("marshal marking scheme: %w", err)
			}
			schemeJSON = b
		}
		if len(in.Keywords) > 0 {
			b, err := json.Marshal(in.Keywords)
			if err != nil {
				return fmt.Errorf("marshal keywords: %w", err)
			}
			keywordsJSON = b
		}

		if _, err := tx.Exec(
			`INSERT INTO expected_responses (question_id, exam_paper_id, answer, marking_scheme, keywords, is_ai_generated)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			in.QuestionID, paperID, in.Answer, schemeJSON, keywordsJSON, aiGenerated,
		); err != nil {
			return fmt.Errorf("insert expected response: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListExpectedResponses(paperID int64) ([]models.ExpectedResponse, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, exam_paper_id, answer, marking_scheme, keywords, is_ai_generated, created_at, updated_at
		 FROM expected_responses WHERE exam_paper_id = $1`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expected responses: %w", err)
	}
	defer rows.Close()

	var responses []models.ExpectedResponse
	for rows.Next() {
		var r models.ExpectedResponse
		var schemeJSON, keywordsJSON []byte
		if err := rows.Scan(&r.ID, &r.QuestionID, &r.ExamPaperID, &r.Answer,
			&schemeJSON, &keywordsJSON, &r.IsAIGenerated, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan expected response: %w", err)
		}
		if len(schemeJSON) > 0 {
			var scheme models.MarkingScheme
			if err := json.Unmarshal(schemeJSON, &scheme); err != nil {
				return nil, fmt.Errorf("unmarshal marking scheme: %w", err)
			}
			r.MarkingScheme = &scheme
		}
		if len(keywordsJSON) > 0 {
			if err := json.Unmarshal(keywordsJSON, &r.Keywords); err != nil {
				return nil, fmt.Errorf("unmarshal keywords: %w", err)
			}
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func (s *Store) CountExpectedResponses(paperID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM expected_responses WHERE exam_paper_id = $1`, paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expected responses: %w", err)
	}
	return count, nil
}

// ── Moderation Samples ──────────────────────────────────

func (s *Store) CreateModerationSample(ctx context.Context, paperID int64, req models.AddModerationSampleRequest) (*models.ModerationSample, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	total := 0.0
	for _, e := range req.Entries {
		total += e.Score
	}

	var sample models.ModerationSample
	err = tx.QueryRow(
		`INSERT INTO moderation_samples (exam_paper_id, label, total_score)
		 VALUES ($1, $2, $3)
		 RETURNING id, exam_paper_id, COALESCE(label, ''), total_score, is_verified, created_at`,
		paperID, nullString(req.Label), total,
	).Scan(&sample.ID, &sample.ExamPaperID, &sample.Label, &sample.TotalScore, &sample.IsVerified, &sample.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert sample: %w", err)
	}

	for _, e := range req.Entries {
		var entry models.ModerationEntry
		err := tx.QueryRow(
			`INSERT INTO moderation_sample_entries (sample_id, question_id, answer_text, score)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, sample_id, question_id, answer_text, score`,
			sample.ID, e.QuestionID, e.AnswerText, e.Score,
		).Scan(&entry.ID, &entry.SampleID, &entry.QuestionID, &entry.AnswerText, &entry.Score)
		if err != nil {
			return nil, fmt.Errorf("insert sample entry: %w", err)
		}
		sample.Entries = append(sample.Entries, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sample: %w", err)
	}
	return &sample, nil
}

func (s *Store) ListModerationSamples(paperID int64, verifiedOnly bool) ([]models.ModerationSample, error) {
	query := `SELECT id, exam_paper_id, COALESCE(label, ''), total_score, is_verified, created_at
	          FROM moderation_samples WHERE exam_paper_id = $1`
	if verifiedOnly {
		query += ` AND is_verified = TRUE`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, paperID)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var samples []models.ModerationSample
	for rows.Next() {
		var m models.ModerationSample
		if err := rows.Scan(&m.ID, &m.ExamPaperID, &m.Label, &m.TotalScore, &m.IsVerified, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range samples {
		entries, err := s.listSampleEntries(samples[i].ID)
		if err != nil {
			return nil, err
		}
		samples[i].Entries = entries
	}
	return samples, nil
}

func (s *Store) listSampleEntries(sampleID int64) ([]models.ModerationEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, sample_id, question_id, answer_text, score
		 FROM moderation_sample_entries WHERE sample_id = $1 ORDER BY question_id`,
		sampleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sample entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ModerationEntry
	for rows.Next() {
		var e models.ModerationEntry
		if err := rows.Scan(&e.ID, &e.SampleID, &e.QuestionID, &e.AnswerText, &e.Score); err != nil {
			return nil, fmt.Errorf("scan sample entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetModerationSample(sampleID int64) (*models.ModerationSample, error) {
	var m models.ModerationSample
	err := s.db.QueryRow(
		`SELECT id, exam_paper_id, COALESCE(label, ''), total_score, is_verified, created_at
		 FROM moderation_samples WHERE id = $1`,
		sampleID,
	).Scan(&m.ID, &m.ExamPaperID, &m.Label, &m.TotalScore, &m.IsVerified, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sample: %w", err)
	}
	entries, err := s.listSampleEntries(m.ID)
	if err != nil {
		return nil, err
	}
	m.Entries = entries
	return &m, nil
}

func (s *Store) VerifyModerationSample(sampleID int64) error {
	_, err := s.db.Exec(`UPDATE moderation_samples SET is_verified = TRUE WHERE id = $1`, sampleID)
	if err != nil {
		return fmt.Errorf("verify sample: %w", err)
	}
	return nil
}

func (s *Store) CountModerationSamples(paperID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM moderation_samples WHERE exam_paper_id = $1`, paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
