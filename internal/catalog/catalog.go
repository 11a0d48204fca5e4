// Package catalog is a read-only client for the external MySQL document
// catalog. The sharing engine stores only document ids; titles, mime
// types and download URLs are resolved here at response time.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"qrshare/entity"
	"qrshare/internal/config"
)

type MySql struct {
	db         *sql.DB
	prefix     string
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(conf *config.Config) (*MySql, error) {
	if !conf.Catalog.Enabled {
		return nil, fmt.Errorf("document catalog is disabled in configuration")
	}
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.Catalog.UserName, conf.Catalog.Password, conf.Catalog.HostName, conf.Catalog.Port, conf.Catalog.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return &MySql{
		db:         db,
		prefix:     conf.Catalog.Prefix,
		statements: make(map[string]*sql.Stmt),
	}, nil
}

func (s *MySql) Close() {
	s.closeStmt()
	_ = s.db.Close()
}

// Documents resolves document ids to display metadata. Ids that no longer
// exist in the catalog are dropped from the result, not treated as errors:
// the payload shows whatever still resolves.
func (s *MySql) Documents(ctx context.Context, ids []string) ([]*entity.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(
		`SELECT document_id, title, file_name, mime_type, file_size, download_url
                   FROM %sdocument
                   WHERE document_id IN (%s)`,
		s.prefix, placeholders,
	)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	byId := make(map[string]*entity.Document, len(ids))
	for rows.Next() {
		var doc entity.Document
		if err = rows.Scan(
			&doc.Id,
			&doc.Title,
			&doc.FileName,
			&doc.Mime,
			&doc.Size,
			&doc.URL,
		); err != nil {
			return nil, err
		}
		byId[doc.Id] = &doc
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// preserve the bundle's document order
	documents := make([]*entity.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byId[id]; ok {
			documents = append(documents, doc)
		}
	}
	return documents, nil
}

// Document resolves a single id; entity.ErrNotFound when missing.
func (s *MySql) Document(ctx context.Context, id string) (*entity.Document, error) {
	stmt, err := s.stmtSelectDocument()
	if err != nil {
		return nil, err
	}
	var doc entity.Document
	err = stmt.QueryRowContext(ctx, id).Scan(
		&doc.Id,
		&doc.Title,
		&doc.FileName,
		&doc.Mime,
		&doc.Size,
		&doc.URL,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return &doc, nil
}

func (s *MySql) prepareStmt(name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}

	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *MySql) stmtSelectDocument() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT document_id, title, file_name, mime_type, file_size, download_url
                   FROM %sdocument
                   WHERE document_id = ?`,
		s.prefix,
	)
	return s.prepareStmt("selectDocument", query)
}
