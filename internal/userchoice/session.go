package userchoice

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/model"
)

// DefaultSessionExpiry matches the config default; callers typically pass
// config.SessionExpiryHours instead.
const DefaultSessionExpiry = 24 * time.Hour

// CreateSession starts a new ACTIVE session, expiring after ttl.
func (s *Store) CreateSession(ctx context.Context, name, userID, documentID, srcLang, tgtLang string, ttl time.Duration) (model.ChoiceSession, error) {
	now := time.Now().UTC()
	session := model.ChoiceSession{
		SessionID:      uuid.NewString(),
		Name:           name,
		Status:         model.SessionActive,
		UserID:         userID,
		DocumentID:     documentID,
		SourceLanguage: srcLang,
		TargetLanguage: tgtLang,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO choice_sessions (session_id, name, status, user_id, document_id, source_language, target_language, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, session.SessionID, session.Name, string(session.Status), session.UserID, session.DocumentID,
		session.SourceLanguage, session.TargetLanguage, now.Format(time.RFC3339), session.ExpiresAt.Format(time.RFC3339))
	if err != nil {
		return model.ChoiceSession{}, apperr.NewInternal("", err)
	}
	return session, nil
}

// GetSession reads a session's current state, including its per-type choice
// counts.
func (s *Store) GetSession(ctx context.Context, sessionID string) (model.ChoiceSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, name, status, user_id, document_id, source_language, target_language,
			translate_count, preserve_count, custom_count, skip_count, total_count, consistency_score,
			created_at, expires_at
		FROM choice_sessions WHERE session_id = ?
	`, sessionID)

	var session model.ChoiceSession
	var createdAt, expiresAt string
	err := row.Scan(
		&session.SessionID, &session.Name, &session.Status, &session.UserID, &session.DocumentID,
		&session.SourceLanguage, &session.TargetLanguage,
		&session.Counts.Translate, &session.Counts.Preserve, &session.Counts.Custom, &session.Counts.Skip, &session.Counts.Total,
		&session.ConsistencyScore, &createdAt, &expiresAt,
	)
	if err == sql.ErrNoRows {
		return model.ChoiceSession{}, apperr.NewNotFound("", "choice session")
	}
	if err != nil {
		return model.ChoiceSession{}, apperr.NewInternal("", err)
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	session.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return session, nil
}

// RecordSessionChoice increments a session's per-type and total counters.
// It rejects writes to a session already EXPIRED.
func (s *Store) RecordSessionChoice(ctx context.Context, sessionID string, choiceType model.ChoiceType) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == model.SessionExpired {
		return apperr.NewInvalidInput(sessionID, "session has expired")
	}

	column := map[model.ChoiceType]string{
		model.ChoiceTranslate: "translate_count",
		model.ChoicePreserve:  "preserve_count",
		model.ChoiceCustom:    "custom_count",
		model.ChoiceSkip:      "skip_count",
	}[choiceType]
	if column == "" {
		return apperr.NewInvalidInput(sessionID, "unknown choice type")
	}

	_, err = s.db.ExecContext(ctx, `UPDATE choice_sessions SET `+column+` = `+column+` + 1, total_count = total_count + 1 WHERE session_id = ?`, sessionID)
	if err != nil {
		return apperr.NewInternal(sessionID, err)
	}
	return nil
}

// ExpireSweep marks every ACTIVE or SUSPENDED session whose expires_at has
// passed as EXPIRED. Expired sessions keep their choices visible per scope
// rules; only new writes to the session are rejected. Intended to be
// called periodically (default hourly) by the orchestrator's background
// sweeper.
func (s *Store) ExpireSweep(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE choice_sessions SET status = ?
		WHERE status IN (?, ?) AND expires_at < ?
	`, string(model.SessionExpired), string(model.SessionActive), string(model.SessionSuspended), now)
	if err != nil {
		return 0, apperr.NewInternal("", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
