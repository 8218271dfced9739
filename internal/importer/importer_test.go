package importer

import (
	"context"
	"strings"
	"testing"

	"tabify/internal/domain"
)

type stubMenuRepo struct {
	items []domain.MenuItem
}

func (s *stubMenuRepo) Upsert(_ context.Context, it domain.MenuItem) error {
	s.items = append(s.items, it)
	return nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,name,price,category,image
2,Tea,10,beverages,https://example.com/tea.jpg
,,,,
4, Chips ,15,snacks,
7,Samosa,12,,`

	repo := &stubMenuRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo).Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 items imported, got %d", count)
	}
	if repo.items[0].Image != "https://example.com/tea.jpg" || repo.items[0].Price != 10 {
		t.Fatalf("unexpected item data: %+v", repo.items[0])
	}
	if repo.items[1].Name != "Chips" {
		t.Fatalf("expected trimmed name, got %q", repo.items[1].Name)
	}
	if repo.items[2].Category != "" || repo.items[2].ID != 7 {
		t.Fatalf("unexpected item data: %+v", repo.items[2])
	}
}

func TestCSVImporter_HeaderOrderAndCase(t *testing.T) {
	csvData := "Price,Name,ID\n5,Chewing Gum,5\n"
	repo := &stubMenuRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo).Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 1 || repo.items[0] != (domain.MenuItem{ID: 5, Name: "Chewing Gum", Price: 5}) {
		t.Fatalf("unexpected import: %d %+v", count, repo.items)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing column": "id,name\n1,Tea\n",
		"bad id":         "id,name,price\nx,Tea,10\n",
		"missing name":   "id,name,price\n1,,10\n",
		"negative price": "id,name,price\n1,Tea,-1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubMenuRepo{}
			if _, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing imported, got %+v", repo.items)
			}
		})
	}
}
