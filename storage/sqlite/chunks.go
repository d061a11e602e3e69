package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/storage"
)

// ReplaceChunks swaps an article's chunk set in one transaction. Readers
// see either the old set or the new set, never a mix. is_chunked tracks
// whether any chunks remain.
func (s *Store) ReplaceChunks(ctx context.Context, articleID int64, chunks []*core.Chunk) error {
	if err := core.ValidateChunks(chunks); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM article_chunks WHERE article_id = ?`, articleID); err != nil {
		return err
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO article_chunks (article_id, chunk_index, content, word_count, start_position)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			wordCount := chunk.WordCount
			if wordCount == 0 {
				wordCount = len(strings.Fields(chunk.Content))
			}
			if _, err := stmt.ExecContext(ctx,
				articleID, chunk.ChunkIndex, chunk.Content, wordCount, chunk.StartPosition); err != nil {
				return err
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE articles SET is_chunked = ? WHERE id = ?`, len(chunks) > 0, articleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %d: %w", articleID, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrTransactionFailed, err)
	}
	return nil
}

// GetChunks fetches an article's chunks ordered by index. A nil indices
// slice fetches all of them.
func (s *Store) GetChunks(ctx context.Context, articleID int64, indices []int) ([]*core.Chunk, error) {
	query := `SELECT article_id, chunk_index, content, word_count, start_position
		FROM article_chunks WHERE article_id = ?`
	args := []any{articleID}

	if len(indices) > 0 {
		query += ` AND chunk_index IN (` + placeholders(len(indices)) + `)`
		for _, idx := range indices {
			args = append(args, idx)
		}
	}
	query += ` ORDER BY chunk_index ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		c := &core.Chunk{}
		if err := rows.Scan(&c.ArticleID, &c.ChunkIndex, &c.Content, &c.WordCount, &c.StartPosition); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
