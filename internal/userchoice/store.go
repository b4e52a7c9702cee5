package userchoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_choices (
	choice_id TEXT PRIMARY KEY,
	term TEXT NOT NULL,
	choice_type TEXT NOT NULL,
	translation_result TEXT,
	context_hash TEXT NOT NULL,
	sentence_context TEXT,
	paragraph_context TEXT,
	semantic_field TEXT,
	philosophical_domain TEXT,
	author TEXT,
	source_language TEXT,
	target_language TEXT,
	page_number INTEGER,
	surrounding_terms TEXT,
	related_concepts TEXT,
	context_confidence REAL,
	scope TEXT NOT NULL,
	confidence_level REAL,
	usage_count INTEGER NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_used_at TEXT,
	session_id TEXT NOT NULL DEFAULT '',
	document_id TEXT NOT NULL DEFAULT '',
	UNIQUE(term, context_hash, scope, session_id)
);

CREATE INDEX IF NOT EXISTS idx_user_choices_term ON user_choices(term);

CREATE TABLE IF NOT EXISTS choice_sessions (
	session_id TEXT PRIMARY KEY,
	name TEXT,
	status TEXT NOT NULL,
	user_id TEXT,
	document_id TEXT,
	source_language TEXT,
	target_language TEXT,
	translate_count INTEGER NOT NULL DEFAULT 0,
	preserve_count INTEGER NOT NULL DEFAULT 0,
	custom_count INTEGER NOT NULL DEFAULT 0,
	skip_count INTEGER NOT NULL DEFAULT 0,
	total_count INTEGER NOT NULL DEFAULT 0,
	consistency_score REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
`

// successRateAlpha is the exponential-moving-average smoothing factor for
// record_usage's success-rate update.
const successRateAlpha = 0.1

// minSuccessRateForMatch is the floor success_rate for a CONTEXTUAL choice
// to be eligible as a nearest-context match.
const minSuccessRateForMatch = 0.5

// Store is the embedded, file-backed SQL store behind C8.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStore opens (creating if absent) a SQLite database at path and applies
// the schema. The pure-Go modernc.org/sqlite driver is used so the binary
// stays cgo-free.
func NewStore(path string, logger *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open user-choice store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one connection avoids SQLITE_BUSY

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply user-choice schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MakeChoice upserts a UserChoice keyed by (term, context_hash, scope,
// session_id).
func (s *Store) MakeChoice(ctx context.Context, term string, choiceType model.ChoiceType, translationResult string, tctx model.TranslationContext, scope model.ChoiceScope, sessionID string) (model.UserChoice, error) {
	now := time.Now().UTC()
	hash := ContextHash(tctx)
	choiceID := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_choices (
			choice_id, term, choice_type, translation_result, context_hash,
			sentence_context, paragraph_context, semantic_field, philosophical_domain,
			author, source_language, target_language, page_number,
			surrounding_terms, related_concepts, context_confidence,
			scope, confidence_level, usage_count, success_rate,
			created_at, updated_at, last_used_at, session_id, document_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, NULL, ?, ?)
		ON CONFLICT(term, context_hash, scope, session_id) DO UPDATE SET
			choice_type = excluded.choice_type,
			translation_result = excluded.translation_result,
			updated_at = excluded.updated_at
	`,
		choiceID, term, string(choiceType), translationResult, hash,
		tctx.SentenceContext, tctx.ParagraphContext, tctx.SemanticField, tctx.PhilosophicalDomain,
		tctx.Author, tctx.SourceLanguage, tctx.TargetLanguage, tctx.PageNumber,
		strings.Join(tctx.SurroundingTerms, ","), strings.Join(tctx.RelatedConcepts, ","), tctx.ConfidenceScore,
		string(scope), tctx.ConfidenceScore,
		now.Format(time.RFC3339), now.Format(time.RFC3339), sessionID, "",
	)
	if err != nil {
		return model.UserChoice{}, apperr.NewInternal("", err)
	}

	existing, err := s.exactMatch(ctx, term, hash, scope, sessionID)
	if err != nil {
		return model.UserChoice{}, err
	}
	if existing == nil {
		return model.UserChoice{}, apperr.NewInternal("", fmt.Errorf("upserted choice not found"))
	}
	return *existing, nil
}

// GetChoice returns the best-matching UserChoice for term under tctx,
// preferring exact (term, context_hash) matches in scope priority order
// SESSION > DOCUMENT > CONTEXTUAL > GLOBAL, else the nearest CONTEXTUAL
// match by similarity*success_rate among choices with success_rate >= 0.5
// and similarity >= the threshold.
func (s *Store) GetChoice(ctx context.Context, term string, tctx model.TranslationContext, sessionID string) (*model.UserChoice, error) {
	hash := ContextHash(tctx)

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM user_choices WHERE term = ? AND context_hash = ? AND (session_id = ? OR session_id = '')`, term, hash, sessionID)
	if err != nil {
		return nil, apperr.NewInternal("", err)
	}
	defer rows.Close()

	var exact []model.UserChoice
	for rows.Next() {
		c, err := scanChoice(rows)
		if err != nil {
			return nil, apperr.NewInternal("", err)
		}
		exact = append(exact, c)
	}
	if len(exact) > 0 {
		best := exact[0]
		for _, c := range exact[1:] {
			if scopeRank(c.Scope) < scopeRank(best.Scope) {
				best = c
			}
		}
		return &best, nil
	}

	candidates, err := s.candidatesForTerm(ctx, term, model.ScopeContextual)
	if err != nil {
		return nil, err
	}

	var best *model.UserChoice
	bestScore := 0.0
	for i := range candidates {
		c := candidates[i]
		if c.SuccessRate < minSuccessRateForMatch {
			continue
		}
		sim := Similarity(tctx, c.Context)
		if sim < SimilarityThreshold {
			continue
		}
		score := sim * c.SuccessRate
		if best == nil || score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, nil
}

func (s *Store) exactMatch(ctx context.Context, term, hash string, scope model.ChoiceScope, sessionID string) (*model.UserChoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM user_choices WHERE term = ? AND context_hash = ? AND scope = ? AND session_id = ?`, term, hash, string(scope), sessionID)
	c, err := scanChoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewInternal("", err)
	}
	return &c, nil
}

func (s *Store) candidatesForTerm(ctx context.Context, term string, scope model.ChoiceScope) ([]model.UserChoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM user_choices WHERE term = ? AND scope = ?`, term, string(scope))
	if err != nil {
		return nil, apperr.NewInternal("", err)
	}
	defer rows.Close()

	var out []model.UserChoice
	for rows.Next() {
		c, err := scanChoice(rows)
		if err != nil {
			return nil, apperr.NewInternal("", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// RecordUsage applies the exponential-moving-average success_rate update
// and increments usage_count/last_used_at for choiceID.
func (s *Store) RecordUsage(ctx context.Context, choiceID string, success bool) error {
	row := s.db.QueryRowContext(ctx, `SELECT success_rate FROM user_choices WHERE choice_id = ?`, choiceID)
	var rate float64
	if err := row.Scan(&rate); err != nil {
		if err == sql.ErrNoRows {
			return apperr.NewNotFound("", "user choice")
		}
		return apperr.NewInternal("", err)
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	newRate := (1-successRateAlpha)*rate + successRateAlpha*outcome

	_, err := s.db.ExecContext(ctx, `
		UPDATE user_choices
		SET success_rate = ?, usage_count = usage_count + 1, last_used_at = ?
		WHERE choice_id = ?
	`, newRate, time.Now().UTC().Format(time.RFC3339), choiceID)
	if err != nil {
		return apperr.NewInternal("", err)
	}
	return nil
}

// ChoiceConflict pairs two choices for the same term whose contexts are
// similar but whose decision differs.
type ChoiceConflict struct {
	Term string
	A    model.UserChoice
	B    model.UserChoice
}

// DetectConflicts finds every pair of choices on term whose contexts have
// equal context hashes or are similar >= the conflict threshold but whose
// choice_type or translation_result differs.
func (s *Store) DetectConflicts(ctx context.Context, term string) ([]ChoiceConflict, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM user_choices WHERE term = ?`, term)
	if err != nil {
		return nil, apperr.NewInternal("", err)
	}
	defer rows.Close()

	var all []model.UserChoice
	for rows.Next() {
		c, err := scanChoice(rows)
		if err != nil {
			return nil, apperr.NewInternal("", err)
		}
		all = append(all, c)
	}

	var conflicts []ChoiceConflict
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.Context.ContextHash != b.Context.ContextHash && Similarity(a.Context, b.Context) < SimilarityThreshold {
				continue
			}
			if a.ChoiceType == b.ChoiceType && a.TranslationResult == b.TranslationResult {
				continue
			}
			conflicts = append(conflicts, ChoiceConflict{Term: term, A: a, B: b})
		}
	}
	return conflicts, nil
}

// ResolutionPolicy enumerates conflict resolution strategies.
type ResolutionPolicy string

const (
	PolicyLatestWins        ResolutionPolicy = "LATEST_WINS"
	PolicyHighestConfidence ResolutionPolicy = "HIGHEST_CONFIDENCE"
	PolicyContextSpecific   ResolutionPolicy = "CONTEXT_SPECIFIC"
	PolicyUserPrompt        ResolutionPolicy = "USER_PROMPT"
)

// Resolve applies policy to a conflict. CONTEXT_SPECIFIC keeps both choices
// (no deletion, since their contexts are treated as distinct despite
// exceeding the similarity threshold); USER_PROMPT defers the decision and
// returns without mutating state.
func (s *Store) Resolve(ctx context.Context, conflict ChoiceConflict, policy ResolutionPolicy) error {
	switch policy {
	case PolicyContextSpecific, PolicyUserPrompt:
		return nil
	case PolicyLatestWins:
		loser := conflict.A
		if conflict.A.UpdatedAt.After(conflict.B.UpdatedAt) {
			loser = conflict.B
		}
		return s.delete(ctx, loser.ChoiceID)
	case PolicyHighestConfidence:
		loser := conflict.A
		if conflict.A.ConfidenceLevel >= conflict.B.ConfidenceLevel {
			loser = conflict.B
		}
		return s.delete(ctx, loser.ChoiceID)
	default:
		return apperr.NewInvalidInput("", fmt.Sprintf("unknown resolution policy %q", policy))
	}
}

func (s *Store) delete(ctx context.Context, choiceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_choices WHERE choice_id = ?`, choiceID)
	if err != nil {
		return apperr.NewInternal("", err)
	}
	return nil
}

// exportRecord is the JSON-serializable shape for Export/Import.
type exportRecord struct {
	ChoiceID          string                    `json:"choice_id"`
	Term              string                    `json:"term"`
	ChoiceType        model.ChoiceType          `json:"choice_type"`
	TranslationResult string                    `json:"translation_result"`
	Context           model.TranslationContext  `json:"context"`
	Scope             model.ChoiceScope         `json:"scope"`
	ConfidenceLevel   float64                   `json:"confidence_level"`
	UsageCount        int                       `json:"usage_count"`
	SuccessRate       float64                   `json:"success_rate"`
	SessionID         string                    `json:"session_id"`
	DocumentID        string                    `json:"document_id"`
}

// Export serializes choices as JSON: every stored choice when sessionID is
// empty, otherwise the choices recorded under sessionID plus those recorded
// with no session id, whatever their scope.
func (s *Store) Export(ctx context.Context, sessionID string) ([]byte, error) {
	var rows *sql.Rows
	var err error
	if sessionID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM user_choices`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM user_choices WHERE session_id = ? OR session_id = ''`, sessionID)
	}
	if err != nil {
		return nil, apperr.NewInternal("", err)
	}
	defer rows.Close()

	var records []exportRecord
	for rows.Next() {
		c, err := scanChoice(rows)
		if err != nil {
			return nil, apperr.NewInternal("", err)
		}
		records = append(records, exportRecord{
			ChoiceID: c.ChoiceID, Term: c.Term, ChoiceType: c.ChoiceType,
			TranslationResult: c.TranslationResult, Context: c.Context, Scope: c.Scope,
			ConfidenceLevel: c.ConfidenceLevel, UsageCount: c.UsageCount, SuccessRate: c.SuccessRate,
			SessionID: c.SessionID, DocumentID: c.DocumentID,
		})
	}

	return json.Marshal(records)
}

// Import deserializes and upserts records, idempotent by choice_id; each
// record is validated against the UserChoice invariants (non-empty term,
// known choice_type and scope) before being written.
func (s *Store) Import(ctx context.Context, data []byte, sessionID string) (int, error) {
	var records []exportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, apperr.NewInvalidInput("", fmt.Sprintf("malformed export payload: %v", err))
	}

	count := 0
	for _, r := range records {
		if r.Term == "" {
			return count, apperr.NewInvalidInput("", "record missing term")
		}
		switch r.ChoiceType {
		case model.ChoiceTranslate, model.ChoicePreserve, model.ChoiceCustom, model.ChoiceSkip:
		default:
			return count, apperr.NewInvalidInput("", fmt.Sprintf("unknown choice_type %q", r.ChoiceType))
		}
		switch r.Scope {
		case model.ScopeGlobal, model.ScopeContextual, model.ScopeDocument, model.ScopeSession:
		default:
			return count, apperr.NewInvalidInput("", fmt.Sprintf("unknown scope %q", r.Scope))
		}
		sid := r.SessionID
		if sessionID != "" {
			sid = sessionID
		}

		now := time.Now().UTC().Format(time.RFC3339)
		hash := ContextHash(r.Context)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO user_choices (
				choice_id, term, choice_type, translation_result, context_hash,
				sentence_context, paragraph_context, semantic_field, philosophical_domain,
				author, source_language, target_language, page_number,
				surrounding_terms, related_concepts, context_confidence,
				scope, confidence_level, usage_count, success_rate,
				created_at, updated_at, last_used_at, session_id, document_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
			ON CONFLICT(choice_id) DO UPDATE SET
				choice_type = excluded.choice_type,
				translation_result = excluded.translation_result,
				usage_count = excluded.usage_count,
				success_rate = excluded.success_rate,
				updated_at = excluded.updated_at
		`,
			r.ChoiceID, r.Term, string(r.ChoiceType), r.TranslationResult, hash,
			r.Context.SentenceContext, r.Context.ParagraphContext, r.Context.SemanticField, r.Context.PhilosophicalDomain,
			r.Context.Author, r.Context.SourceLanguage, r.Context.TargetLanguage, r.Context.PageNumber,
			strings.Join(r.Context.SurroundingTerms, ","), strings.Join(r.Context.RelatedConcepts, ","), r.Context.ConfidenceScore,
			string(r.Scope), r.ConfidenceLevel, r.UsageCount, r.SuccessRate,
			now, now, sid, r.DocumentID,
		)
		if err != nil {
			return count, apperr.NewInternal("", err)
		}
		count++
	}
	return count, nil
}

const selectColumns = `choice_id, term, choice_type, translation_result,
	sentence_context, paragraph_context, semantic_field, philosophical_domain,
	author, source_language, target_language, page_number,
	surrounding_terms, related_concepts, context_confidence,
	scope, confidence_level, usage_count, success_rate,
	created_at, updated_at, last_used_at, session_id, document_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChoice(row rowScanner) (model.UserChoice, error) {
	var c model.UserChoice
	var translationResult, lastUsedAt sql.NullString
	var surrounding, related string
	var createdAt, updatedAt string

	err := row.Scan(
		&c.ChoiceID, &c.Term, &c.ChoiceType, &translationResult,
		&c.Context.SentenceContext, &c.Context.ParagraphContext, &c.Context.SemanticField, &c.Context.PhilosophicalDomain,
		&c.Context.Author, &c.Context.SourceLanguage, &c.Context.TargetLanguage, &c.Context.PageNumber,
		&surrounding, &related, &c.Context.ConfidenceScore,
		&c.Scope, &c.ConfidenceLevel, &c.UsageCount, &c.SuccessRate,
		&createdAt, &updatedAt, &lastUsedAt, &c.SessionID, &c.DocumentID,
	)
	if err != nil {
		return model.UserChoice{}, err
	}

	c.TranslationResult = translationResult.String
	c.Context.SurroundingTerms = splitNonEmpty(surrounding)
	c.Context.RelatedConcepts = splitNonEmpty(related)
	c.Context.ContextHash = ContextHash(c.Context)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if lastUsedAt.Valid {
		c.LastUsedAt, _ = time.Parse(time.RFC3339, lastUsedAt.String)
	}
	return c, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
