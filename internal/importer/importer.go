package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tabify/internal/domain"
)

type MenuWriter interface {
	Upsert(ctx context.Context, item domain.MenuItem) error
}

// CSVImporter reads menu CSV files with the columns id,name,price,category,image.
type CSVImporter struct {
	reader *csv.Reader
	repo   MenuWriter
}

func NewCSVImporter(r io.Reader, repo MenuWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{reader: csvr, repo: repo}
}

var requiredHeaders = []string{"id", "name", "price"}

// Run parses CSV rows and upserts menu items. Blank rows are skipped.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing %q column", h)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		item, ok, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		if err := i.repo.Upsert(ctx, item); err != nil {
			return imported, fmt.Errorf("upsert menu item %d: %w", item.ID, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.MenuItem, bool, error) {
	idStr := pick(record, index, "id")
	name := pick(record, index, "name")
	priceStr := pick(record, index, "price")
	if idStr == "" && name == "" && priceStr == "" {
		return domain.MenuItem{}, false, nil
	}

	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return domain.MenuItem{}, false, fmt.Errorf("invalid id %q", idStr)
	}
	if name == "" {
		return domain.MenuItem{}, false, fmt.Errorf("missing name for id %d", id)
	}
	price, err := strconv.ParseInt(priceStr, 10, 64)
	if err != nil || price < 0 {
		return domain.MenuItem{}, false, fmt.Errorf("invalid price %q for id %d", priceStr, id)
	}

	return domain.MenuItem{
		ID:       id,
		Name:     name,
		Price:    price,
		Category: pick(record, index, "category"),
		Image:    pick(record, index, "image"),
	}, true, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
