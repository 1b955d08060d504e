package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

var ErrEmptyCatalog = errors.New("catalog contains no documents")

var fileNameSeparators = regexp.MustCompile(`[_\-,、，]+`)

// CSVLoader reads catalog rows id,hierarchyPath,fileName from every CSV file
// found under its roots.
type CSVLoader struct {
	walker     port.FileWalker
	roots      []string
	skipHeader bool
	log        logger.ILogger
}

func NewCSVLoader(walker port.FileWalker, roots []string, skipHeader bool, log logger.ILogger) *CSVLoader {
	if log == nil {
		log = logger.NewNop()
	}
	return &CSVLoader{walker: walker, roots: roots, skipHeader: skipHeader, log: log}
}

// Load parses every file. Malformed rows are skipped with a warning and a
// duplicate id keeps its first occurrence.
func (l *CSVLoader) Load(ctx context.Context) ([]domain.Document, error) {
	seen := map[int]struct{}{}
	var docs []domain.Document

	for _, root := range l.roots {
		files, err := l.walker.Walk(root)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			parsed, err := l.loadFile(f.Path)
			if err != nil {
				return nil, err
			}
			for _, d := range parsed {
				if _, dup := seen[d.ID]; dup {
					l.log.Warn("catalog", "duplicate document id skipped", map[string]interface{}{"id": d.ID, "file": f.Path})
					continue
				}
				seen[d.ID] = struct{}{}
				docs = append(docs, d)
			}
		}
	}

	if len(docs) == 0 {
		return nil, ErrEmptyCatalog
	}
	l.log.Info("catalog", "catalog loaded", map[string]interface{}{"documents": len(docs), "roots": len(l.roots)})
	return docs, nil
}

func (l *CSVLoader) loadFile(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	docs, skipped, err := Parse(f, l.skipHeader)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if skipped > 0 {
		l.log.Warn("catalog", "malformed rows skipped", map[string]interface{}{"file": path, "rows": skipped})
	}
	return docs, nil
}

// Parse reads catalog rows from r and returns the documents and the number
// of rows that could not be used.
func Parse(r io.Reader, skipHeader bool) ([]domain.Document, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var docs []domain.Document
	skipped := 0
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if first {
			first = false
			row[0] = strings.TrimPrefix(row[0], "\ufeff")
			if skipHeader {
				continue
			}
		}
		doc, ok := parseRow(row)
		if !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

func parseRow(row []string) (domain.Document, bool) {
	if len(row) < 3 {
		return domain.Document{}, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return domain.Document{}, false
	}
	doc := domain.Document{
		ID:            id,
		HierarchyPath: strings.TrimSpace(row[1]),
		FileName:      strings.TrimSpace(row[2]),
	}
	if doc.FileName == "" {
		return domain.Document{}, false
	}
	doc.Keywords = DeriveKeywords(doc)
	return doc, true
}

// DeriveKeywords returns the hierarchy segments followed by the file-name
// parts longer than one character, without duplicates.
func DeriveKeywords(doc domain.Document) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	for _, seg := range doc.PathSegments() {
		add(seg)
	}
	for _, part := range fileNameSeparators.Split(doc.FileName, -1) {
		if utf8.RuneCountInString(strings.TrimSpace(part)) > 1 {
			add(part)
		}
	}
	return out
}
