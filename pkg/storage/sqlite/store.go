// Package sqlite は章とエンティティの永続化を SQLite で提供します。
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/domain"

	_ "modernc.org/sqlite"
)

// ErrNotFound は対象のレコードが存在しない場合のエラーです。
var ErrNotFound = errors.New("レコードが見つかりません")

//go:embed schema.sql
var schema string

// Store は章・パネル・エンティティを SQLite に保存します。
type Store struct {
	db *sql.DB
}

// Open は SQLite データベースを開き、スキーマを適用します。":memory:" も指定できます。
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("データベースのパスは必須です")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("SQLite のオープンに失敗しました: %w", err)
	}
	// 書き込みは1本の接続に直列化する
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLite への接続に失敗しました: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマの適用に失敗しました: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベースを閉じます。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateChapter は章とそのパネルを1トランザクションで保存します。
func (s *Store) CreateChapter(ctx context.Context, ch domain.Chapter) error {
	if strings.TrimSpace(ch.ID) == "" {
		return fmt.Errorf("章の ID は必須です")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chapters (id, story_id, chapter_number, title, narrative, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.StoryID, ch.ChapterNumber, ch.Title, ch.Narrative, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("章の保存に失敗しました: %w", err)
	}
	for _, p := range ch.Panels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chapter_panels (chapter_id, panel_order, image_url, text) VALUES (?, ?, ?, ?)`,
			ch.ID, p.Order, p.ImageURL, p.Text,
		); err != nil {
			return fmt.Errorf("パネル %d の保存に失敗しました: %w", p.Order, err)
		}
	}
	return tx.Commit()
}

// CreateCharacterRecord はエンティティを保存します。同じ ID のエンティティは上書きされます。
func (s *Store) CreateCharacterRecord(ctx context.Context, storyID string, e domain.Entity) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("エンティティの ID は必須です")
	}
	angles, err := json.Marshal(nonNil(e.Angles))
	if err != nil {
		return fmt.Errorf("アングルのエンコードに失敗しました: %w", err)
	}
	rels, err := json.Marshal(nonNil(e.Relationships))
	if err != nil {
		return fmt.Errorf("関係のエンコードに失敗しました: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, story_id, kind, name, description, image_url, seed, role, is_primary, user_authored, angles, relationships, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   image_url = excluded.image_url,
		   seed = excluded.seed,
		   angles = excluded.angles,
		   relationships = excluded.relationships`,
		e.ID, storyID, string(e.Kind), e.Name, e.Description, e.ImageURL, e.Seed, e.Role,
		e.IsPrimary, e.UserAuthored, string(angles), string(rels), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("エンティティ %s の保存に失敗しました: %w", e.Name, err)
	}
	return nil
}

// GetChapter は章とパネル（順序通り）を返します。
func (s *Store) GetChapter(ctx context.Context, id string) (*domain.Chapter, error) {
	ch := domain.Chapter{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT story_id, chapter_number, title, narrative FROM chapters WHERE id = ?`, id,
	).Scan(&ch.StoryID, &ch.ChapterNumber, &ch.Title, &ch.Narrative)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("章の取得に失敗しました: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT panel_order, image_url, text FROM chapter_panels WHERE chapter_id = ? ORDER BY panel_order`, id)
	if err != nil {
		return nil, fmt.Errorf("パネルの取得に失敗しました: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.RenderedPanel
		if err := rows.Scan(&p.Order, &p.ImageURL, &p.Text); err != nil {
			return nil, fmt.Errorf("パネルの読み取りに失敗しました: %w", err)
		}
		ch.Panels = append(ch.Panels, p)
	}
	return &ch, rows.Err()
}

// ListEntities は物語に属するエンティティを保存順に返します。
func (s *Store) ListEntities(ctx context.Context, storyID string) ([]domain.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, name, description, image_url, seed, role, is_primary, user_authored, angles, relationships
		 FROM entities WHERE story_id = ? ORDER BY created_at, rowid`, storyID)
	if err != nil {
		return nil, fmt.Errorf("エンティティの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var (
			e            domain.Entity
			kind         string
			angles, rels string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.Description, &e.ImageURL, &e.Seed, &e.Role,
			&e.IsPrimary, &e.UserAuthored, &angles, &rels); err != nil {
			return nil, fmt.Errorf("エンティティの読み取りに失敗しました: %w", err)
		}
		e.Kind = domain.EntityKind(kind)
		if err := json.Unmarshal([]byte(angles), &e.Angles); err != nil {
			return nil, fmt.Errorf("アングルのデコードに失敗しました: %w", err)
		}
		if err := json.Unmarshal([]byte(rels), &e.Relationships); err != nil {
			return nil, fmt.Errorf("関係のデコードに失敗しました: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
