package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"salesbridge/internal/migrations"
	"salesbridge/internal/models"
	"salesbridge/internal/security"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicateMessage is returned by SaveMessage when a row with the same
// provider message id already exists. The unique index is the arbiter, so
// two racing inserts resolve deterministically.
var ErrDuplicateMessage = errors.New("duplicate message")

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Message operations

func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (
			provider_message_id, from_phone, chat_phone, kind, content, button_payload,
			display_phone_number, phone_number_id, provider_timestamp,
			agent_reply, processing_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		msg.ProviderMessageID,
		msg.FromPhone,
		msg.ChatPhone,
		msg.Kind,
		msg.Content,
		msg.ButtonPayload,
		msg.DisplayPhoneNumber,
		msg.PhoneNumberID,
		msg.ProviderTimestamp,
		msg.AgentReply,
		msg.ProcessingStatus,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

func (d *Database) GetMessageByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error) {
	query := `
		SELECT id, provider_message_id, from_phone, chat_phone, kind, content, button_payload,
		       display_phone_number, phone_number_id, provider_timestamp,
		       agent_reply, processing_status, created_at, updated_at
		FROM messages
		WHERE provider_message_id = ?
	`

	msg := &models.Message{}
	err := d.db.QueryRowContext(ctx, query, providerMessageID).Scan(
		&msg.ID,
		&msg.ProviderMessageID,
		&msg.FromPhone,
		&msg.ChatPhone,
		&msg.Kind,
		&msg.Content,
		&msg.ButtonPayload,
		&msg.DisplayPhoneNumber,
		&msg.PhoneNumberID,
		&msg.ProviderTimestamp,
		&msg.AgentReply,
		&msg.ProcessingStatus,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// HasMessage reports whether a message with the given provider id is
// already stored.
func (d *Database) HasMessage(ctx context.Context, providerMessageID string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE provider_message_id = ?`, providerMessageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}
	return true, nil
}

// UpdateMessageProcessing attaches the agent outcome to a stored message.
func (d *Database) UpdateMessageProcessing(ctx context.Context, providerMessageID string, status models.ProcessingStatus, agentReply *string) error {
	query := `
		UPDATE messages
		SET processing_status = ?, agent_reply = ?
		WHERE provider_message_id = ?
	`

	return retryableWrite(ctx, "update message processing", func() error {
		result, err := d.db.ExecContext(ctx, query, status, agentReply, providerMessageID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("no message found with provider id: %s", providerMessageID)
		}
		return nil
	})
}

// GetRecentMessages returns the newest limit messages in the
// conversation with the given phone, newest first. Rows written by the
// agent carry the system sender but the same chat phone, so both sides
// of the exchange come back.
func (d *Database) GetRecentMessages(ctx context.Context, phone string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, provider_message_id, from_phone, chat_phone, kind, content, button_payload,
		       display_phone_number, phone_number_id, provider_timestamp,
		       agent_reply, processing_status, created_at, updated_at
		FROM messages
		WHERE chat_phone = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ProviderMessageID,
			&msg.FromPhone,
			&msg.ChatPhone,
			&msg.Kind,
			&msg.Content,
			&msg.ButtonPayload,
			&msg.DisplayPhoneNumber,
			&msg.PhoneNumberID,
			&msg.ProviderTimestamp,
			&msg.AgentReply,
			&msg.ProcessingStatus,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Message status operations

// SaveMessageStatus appends a delivery-state event. Statuses may arrive
// out of order; no deduplication is applied.
func (d *Database) SaveMessageStatus(ctx context.Context, status *models.MessageStatus) error {
	query := `
		INSERT INTO message_statuses (
			provider_message_id, recipient_phone, status, provider_timestamp
		) VALUES (?, ?, ?, ?)
	`

	return retryableWrite(ctx, "save message status", func() error {
		_, err := d.db.ExecContext(ctx, query,
			status.ProviderMessageID,
			status.RecipientPhone,
			status.Status,
			status.ProviderTimestamp,
		)
		return err
	})
}

// GetMessageStatuses returns all status events for a message ordered by
// the provider timestamp, reconstructing the true timeline regardless of
// arrival order.
func (d *Database) GetMessageStatuses(ctx context.Context, providerMessageID string) ([]models.MessageStatus, error) {
	query := `
		SELECT id, provider_message_id, recipient_phone, status, provider_timestamp, created_at
		FROM message_statuses
		WHERE provider_message_id = ?
		ORDER BY provider_timestamp ASC, id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, providerMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.MessageStatus
	for rows.Next() {
		var s models.MessageStatus
		if err := rows.Scan(&s.ID, &s.ProviderMessageID, &s.RecipientPhone, &s.Status, &s.ProviderTimestamp, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message status: %w", err)
		}
		statuses = append(statuses, s)
	}

	return statuses, rows.Err()
}

// Conversation operations

// UpsertConversation creates or refreshes the conversation row for a
// phone number. A touch always reactivates a closed or archived
// conversation.
func (d *Database) UpsertConversation(ctx context.Context, phone, lastMessage string, at time.Time) error {
	query := `
		INSERT INTO conversations (phone_number, status, last_message, last_message_at)
		VALUES (?, 'active', ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
			status = 'active',
			last_message = excluded.last_message,
			last_message_at = excluded.last_message_at
	`

	return retryableWrite(ctx, "upsert conversation", func() error {
		_, err := d.db.ExecContext(ctx, query, phone, lastMessage, at)
		return err
	})
}

func (d *Database) GetConversation(ctx context.Context, phone string) (*models.Conversation, error) {
	query := `
		SELECT id, phone_number, status, last_message, last_message_at, created_at, updated_at
		FROM conversations
		WHERE phone_number = ?
	`

	conv := &models.Conversation{}
	err := d.db.QueryRowContext(ctx, query, phone).Scan(
		&conv.ID,
		&conv.PhoneNumber,
		&conv.Status,
		&conv.LastMessage,
		&conv.LastMessageAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// ListConversations returns conversations newest-activity-first. An empty
// status lists all of them.
func (d *Database) ListConversations(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error) {
	query := `
		SELECT id, phone_number, status, last_message, last_message_at, created_at, updated_at
		FROM conversations
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY last_message_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.PhoneNumber, &c.Status, &c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}

	return conversations, rows.Err()
}

// SetConversationStatus moves a conversation to closed or archived.
func (d *Database) SetConversationStatus(ctx context.Context, phone string, status models.ConversationStatus) error {
	query := `
		UPDATE conversations
		SET status = ?
		WHERE phone_number = ?
	`

	result, err := d.db.ExecContext(ctx, query, status, phone)
	if err != nil {
		return fmt.Errorf("failed to update conversation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no conversation found for phone: %s", phone)
	}

	return nil
}

// Transaction operations

// SaveTransaction inserts or updates the row for an Asaas payment id.
func (d *Database) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (asaas_id, phone_number, amount_cents, status, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(asaas_id) DO UPDATE SET
			phone_number = excluded.phone_number,
			amount_cents = excluded.amount_cents,
			status = excluded.status,
			description = excluded.description
	`

	return retryableWrite(ctx, "save transaction", func() error {
		_, err := d.db.ExecContext(ctx, query, tx.AsaasID, tx.PhoneNumber, tx.AmountCents, tx.Status, tx.Description)
		return err
	})
}

func (d *Database) GetTransactionByProviderID(ctx context.Context, asaasID string) (*models.Transaction, error) {
	query := `
		SELECT id, asaas_id, phone_number, amount_cents, status, description, created_at, updated_at
		FROM transactions
		WHERE asaas_id = ?
	`

	tx := &models.Transaction{}
	err := d.db.QueryRowContext(ctx, query, asaasID).Scan(
		&tx.ID,
		&tx.AsaasID,
		&tx.PhoneNumber,
		&tx.AmountCents,
		&tx.Status,
		&tx.Description,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

func (d *Database) UpdateTransactionStatus(ctx context.Context, asaasID string, status models.TransactionStatus) error {
	query := `
		UPDATE transactions
		SET status = ?
		WHERE asaas_id = ?
	`

	result, err := d.db.ExecContext(ctx, query, status, asaasID)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no transaction found with asaas id: %s", asaasID)
	}

	return nil
}

// Webhook log operations

// SaveWebhookLog writes the audit row for a delivered envelope and
// returns its id so the outcome can be filled in after processing.
func (d *Database) SaveWebhookLog(ctx context.Context, log *models.WebhookLog) (int64, error) {
	query := `
		INSERT INTO webhook_logs (source, event, payload, outcome, error_message)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := d.db.ExecContext(ctx, query, log.Source, log.Event, log.Payload, log.Outcome, log.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to save webhook log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get webhook log id: %w", err)
	}

	return id, nil
}

func (d *Database) UpdateWebhookLogOutcome(ctx context.Context, id int64, outcome models.WebhookOutcome, errorMessage *string) error {
	query := `
		UPDATE webhook_logs
		SET outcome = ?, error_message = ?
		WHERE id = ?
	`

	return retryableWrite(ctx, "update webhook log", func() error {
		_, err := d.db.ExecContext(ctx, query, outcome, errorMessage, id)
		return err
	})
}

// CleanupOldRecords removes message, status and webhook-log rows older
// than the retention window. Conversations and transactions are kept.
func (d *Database) CleanupOldRecords(ctx context.Context, retentionDays int) error {
	queries := []string{
		`DELETE FROM message_statuses WHERE created_at < datetime('now', '-' || ? || ' days')`,
		`DELETE FROM messages WHERE created_at < datetime('now', '-' || ? || ' days')`,
		`DELETE FROM webhook_logs WHERE created_at < datetime('now', '-' || ? || ' days')`,
	}

	for _, query := range queries {
		if _, err := d.db.ExecContext(ctx, query, retentionDays); err != nil {
			return fmt.Errorf("failed to cleanup old records: %w", err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
