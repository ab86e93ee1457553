package repository

import (
	"context"
	"database/sql"

	"github.com/AnshRaj112/soconnect-backend/internal/dbx"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// Page selects a window of a conversation. The zero value selects the whole conversation.
type Page struct {
	BeforeID int64 // only messages with id < BeforeID; 0 means no bound
	Limit    int   // newest Limit messages of the window; 0 means unlimited
}

func (p Page) IsZero() bool {
	return p.BeforeID <= 0 && p.Limit <= 0
}

type MessageRepository interface {
	Insert(ctx context.Context, msg *models.Message) error
	ListConversation(ctx context.Context, userA, userB string, page Page) ([]models.Message, error)
	Conversations(ctx context.Context, code string) ([]models.ConversationSummary, error)
	DeleteByUser(ctx context.Context, code string) (int64, error)
}

type PostgresMessageRepository struct {
	db dbx.DBTX
}

func NewPostgresMessageRepository(db dbx.DBTX) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

const messageColumns = `id, from_user, to_user, text, file_name, file_url, file_type, file_size, timestamp`

// Insert appends msg, assigning ID and Timestamp from the store.
func (r *PostgresMessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (from_user, to_user, text, file_name, file_url, file_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, timestamp`

	var text, fileName, fileURL, fileType sql.NullString
	var fileSize sql.NullInt64
	if msg.Text != nil {
		text = sql.NullString{String: *msg.Text, Valid: true}
	}
	if a := msg.Attachment; a != nil {
		fileName = sql.NullString{String: a.FileName, Valid: true}
		fileURL = sql.NullString{String: a.FileURL, Valid: true}
		fileType = sql.NullString{String: a.FileType, Valid: true}
		fileSize = sql.NullInt64{Int64: a.FileSize, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, msg.From, msg.To, text, fileName, fileURL, fileType, fileSize).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return models.ErrUnknownRecipient
		}
		return wrapDBError(err)
	}
	return nil
}

// ListConversation returns the messages exchanged between userA and userB in either
// direction, ascending by timestamp then id.
func (r *PostgresMessageRepository) ListConversation(ctx context.Context, userA, userB string, page Page) ([]models.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if page.IsZero() {
		rows, err = r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages
			WHERE (from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1)
			ORDER BY timestamp ASC, id ASC`, userA, userB)
	} else {
		var before sql.NullInt64
		if page.BeforeID > 0 {
			before = sql.NullInt64{Int64: page.BeforeID, Valid: true}
		}
		var limit sql.NullInt64
		if page.Limit > 0 {
			limit = sql.NullInt64{Int64: int64(page.Limit), Valid: true}
		}
		// Newest first so LIMIT keeps the most recent window; reversed below.
		rows, err = r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages
			WHERE ((from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1))
			AND ($3::BIGINT IS NULL OR id < $3)
			ORDER BY timestamp DESC, id DESC
			LIMIT $4`, userA, userB, before, limit)
	}
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrapDBError(err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}

	if !page.IsZero() {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}

func scanMessage(rows *sql.Rows) (models.Message, error) {
	var m models.Message
	var text, fileName, fileURL, fileType sql.NullString
	var fileSize sql.NullInt64
	if err := rows.Scan(&m.ID, &m.From, &m.To, &text, &fileName, &fileURL, &fileType, &fileSize, &m.Timestamp); err != nil {
		return m, err
	}
	if text.Valid {
		t := text.String
		m.Text = &t
	}
	if fileURL.Valid {
		m.Attachment = &models.Attachment{
			FileName: fileName.String,
			FileURL:  fileURL.String,
			FileType: fileType.String,
			FileSize: fileSize.Int64,
		}
	}
	return m, nil
}

// Conversations groups the user's messages by counterparty, most recent activity first.
func (r *PostgresMessageRepository) Conversations(ctx context.Context, code string) ([]models.ConversationSummary, error) {
	query := `SELECT CASE WHEN from_user = $1 THEN to_user ELSE from_user END AS counterparty,
			MAX(timestamp) AS last_activity
		FROM messages
		WHERE from_user = $1 OR to_user = $1
		GROUP BY counterparty
		ORDER BY last_activity DESC, counterparty ASC`

	rows, err := r.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	out := []models.ConversationSummary{}
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(&s.CounterpartyCode, &s.LastActivityAt); err != nil {
			return nil, wrapDBError(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return out, nil
}

// DeleteByUser removes every message the user sent or received.
func (r *PostgresMessageRepository) DeleteByUser(ctx context.Context, code string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE from_user = $1 OR to_user = $1`, code)
	if err != nil {
		return 0, wrapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError(err)
	}
	return n, nil
}
