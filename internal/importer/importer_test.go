package importer

import (
	"context"
	"strings"
	"testing"

	"marketplace-checkout/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Create(_ context.Context, p *domain.Product) error {
	s.items = append(s.items, *p)
	return nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `slug,title,department,price,quantity,image,type,kind,option,option_image,variation,variation_price,variation_quantity
tee,Plain Tee,apparel,19.99,,tee.jpg,,,,,,,
,,,,,,Color,image,Red,red.jpg,,,
,,,,,,Color,,Blue,blue.jpg,,,
,,,,,,Size,select,M,,,,
,,,,,,Size,,L,,Red|L,24.50,3
,,,,,,,,,,Blue|M,,0
mug,Mug,kitchen,8,12,,,,,,,,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, "vendor-1", true)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(repo.items))
	}

	tee := repo.items[0]
	if tee.Slug != "tee" || tee.PriceCents != 1999 || tee.Quantity != nil || tee.VendorID != "vendor-1" || tee.Status != domain.ProductPublished {
		t.Fatalf("unexpected product data: %+v", tee)
	}
	if len(tee.VariationTypes) != 2 || len(tee.VariationTypes[0].Options) != 2 || len(tee.VariationTypes[1].Options) != 2 {
		t.Fatalf("unexpected variation types: %+v", tee.VariationTypes)
	}
	if tee.VariationTypes[0].Kind != domain.VariationImage || tee.VariationTypes[0].Options[0].ImagePath != "red.jpg" {
		t.Fatalf("expected image kind with option image, got %+v", tee.VariationTypes[0])
	}
	if len(tee.Variations) != 2 {
		t.Fatalf("expected 2 variations, got %d", len(tee.Variations))
	}
	red := tee.Variations[0]
	if red.PriceCents == nil || *red.PriceCents != 2450 || red.Quantity == nil || *red.Quantity != 3 {
		t.Fatalf("unexpected first variation: %+v", red)
	}
	blue := tee.Variations[1]
	if blue.PriceCents != nil || blue.Quantity == nil || *blue.Quantity != 0 {
		t.Fatalf("expected inherited price and zero stock, got %+v", blue)
	}

	mug := repo.items[1]
	if mug.PriceCents != 800 || mug.Quantity == nil || *mug.Quantity != 12 {
		t.Fatalf("unexpected second product: %+v", mug)
	}
}

func TestCSVImporter_DraftByDefault(t *testing.T) {
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader("slug,title,price\ncap,Cap,5\n"), repo, "vendor-1", false)

	if _, err := imp.Run(context.Background()); err != nil {
		t.Fatalf("import run: %v", err)
	}
	if repo.items[0].Status != domain.ProductDraft {
		t.Fatalf("expected draft status, got %s", repo.items[0].Status)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"bad price":         "slug,title,price\ncap,Cap,five\n",
		"missing price":     "slug,title,price\ncap,Cap,\n",
		"negative stock":    "slug,title,price,quantity\ncap,Cap,5,-1\n",
		"unknown option":    "slug,title,price,type,option,variation\ncap,Cap,5,,,\n,,,Color,Red,\n,,,,,Green\n",
		"partial variation": "slug,title,price,type,option,variation\ncap,Cap,5,,,\n,,,Color,Red,\n,,,Size,M,\n,,,,,Red\n",
		"ambiguous option":  "slug,title,price,type,option,variation\ncap,Cap,5,,,\n,,,Size,Small,\n,,,Box,Small,\n,,,,,Small|Box:Small\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			imp := NewCSVImporter(strings.NewReader(data), repo, "vendor-1", false)
			if _, err := imp.Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing saved, got %d", len(repo.items))
			}
		})
	}
}

func TestCSVImporter_QualifiedOptionNames(t *testing.T) {
	data := "slug,title,price,type,option,variation,variation_price\n" +
		"gift,Gift,10,,,,\n" +
		",,,Size,Small,,\n" +
		",,,Size,Large,,\n" +
		",,,Box,Small,Size:Small|Box:Small,12\n"
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(data), repo, "vendor-1", false)

	if _, err := imp.Run(context.Background()); err != nil {
		t.Fatalf("import run: %v", err)
	}
	v := repo.items[0].Variations[0]
	if !v.Options.Equal(domain.NewOptionSet("Box:Small", "Size:Small")) || v.PriceCents == nil || *v.PriceCents != 1200 {
		t.Fatalf("unexpected variation %+v", v)
	}
}

func TestCSVImporter_IgnoresLeadingContinuationRows(t *testing.T) {
	data := "slug,title,price,type,option\n,,,Color,Red\nmug,Mug,8,,\n"
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(data), repo, "vendor-1", false)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 1 || len(repo.items[0].VariationTypes) != 0 {
		t.Fatalf("expected one plain product, got %+v", repo.items)
	}
}
