package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"ArticleWatch/internal/domain"
)

const maxConversationTitle = 255

// LoadSettings returns the raw settings rows.
func (r *PostgresRepository) LoadSettings(ctx context.Context) (map[string]string, error) {
	query, args, err := r.sb.Select("key", "value").From("rag_settings").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load settings: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	pairs, err := collect(rows, func(rows *sql.Rows) ([2]string, error) {
		var kv [2]string
		err := rows.Scan(&kv[0], &kv[1])
		return kv, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// SaveSettings upserts every value in one statement, so a patch is applied
// entirely or not at all.
func (r *PostgresRepository) SaveSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	insert := r.sb.Insert("rag_settings").Columns("key", "value", "updated_at")
	for _, k := range keys {
		insert = insert.Values(k, values[k], now)
	}
	query, args, err := insert.
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save settings: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GetOrCreateConversation touches an existing conversation or creates one titled title.
func (r *PostgresRepository) GetOrCreateConversation(ctx context.Context, id, title string) (string, error) {
	if validID(id) {
		query, args, err := r.sb.Update("conversations").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return "", fmt.Errorf("build touch conversation: %w", err)
		}
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return "", fmt.Errorf("touch conversation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return id, nil
		}
	}

	newID := uuid.NewString()
	query, args, err := r.sb.
		Insert("conversations").
		Columns("id", "title").
		Values(newID, conversationTitle(title)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert conversation: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return newID, nil
}

func conversationTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "New conversation"
	}
	if runes := []rune(title); len(runes) > maxConversationTitle {
		return string(runes[:maxConversationTitle])
	}
	return title
}

// InsertMessage appends a message. An unknown conversation yields domain.ErrNotFound.
func (r *PostgresRepository) InsertMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if msg.Sources == nil {
		msg.Sources = []domain.Citation{}
	}
	sources, err := json.Marshal(msg.Sources)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal sources: %w", err)
	}
	if !validID(msg.ConversationID) {
		return domain.Message{}, fmt.Errorf("conversation %s: %w", msg.ConversationID, domain.ErrNotFound)
	}

	msg.ID = uuid.NewString()
	query, args, err := r.sb.
		Insert("messages").
		Columns("id", "conversation_id", "role", "content", "sources").
		Values(msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(sources)).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return domain.Message{}, fmt.Errorf("build insert message: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&msg.CreatedAt); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return domain.Message{}, fmt.Errorf("conversation %s: %w", msg.ConversationID, domain.ErrNotFound)
		}
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// seq breaks ties between messages stored within the same clock tick.
func (r *PostgresRepository) lastMessagesQuery(conversationID string, limit int) sq.SelectBuilder {
	return r.sb.
		Select("id", "conversation_id", "role", "content", "sources", "created_at").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at DESC", "seq DESC").
		Limit(uint64(limit))
}

// LastMessages returns up to limit messages of a conversation, most recent first.
func (r *PostgresRepository) LastMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if !validID(conversationID) || limit <= 0 {
		return nil, nil
	}
	query, args, err := r.lastMessagesQuery(conversationID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last messages: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return collect(rows, func(rows *sql.Rows) (domain.Message, error) {
		var (
			msg     domain.Message
			role    string
			sources []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &sources, &msg.CreatedAt); err != nil {
			return msg, err
		}
		msg.Role = domain.Role(role)
		if err := json.Unmarshal(sources, &msg.Sources); err != nil {
			return msg, fmt.Errorf("decode sources of message %s: %w", msg.ID, err)
		}
		return msg, nil
	})
}

// DeleteConversationsBefore drops conversations idle since cutoff; messages cascade.
func (r *PostgresRepository) DeleteConversationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := r.sb.Delete("conversations").Where(sq.Lt{"updated_at": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete conversations: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleted conversations count: %w", err)
	}
	return int(n), nil
}
