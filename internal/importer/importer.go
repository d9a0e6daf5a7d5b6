package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"marketplace-checkout/internal/domain"

	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Create(ctx context.Context, p *domain.Product) error
}

// CSVImporter reads a vendor catalog export and creates its products.
//
// A row with a slug starts a product. Rows without a slug continue it: a
// row with type and option adds that option to the named variation type,
// and a row with variation ("Red|M") adds a priced combination of option
// names with optional price and quantity overrides. A name shared by two
// types is written as "Type:Option", e.g. "Size:Small|Box:Small".
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
	vendorID string
	publish  bool
}

func NewCSVImporter(r io.Reader, repo ProductWriter, vendorID string, publish bool) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		products: repo,
		vendorID: vendorID,
		publish:  publish,
	}
}

// Run parses all rows and creates products in file order.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *domain.Product
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		if slug := pick(record, index, "slug"); slug != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current, err = i.parseProduct(record, index)
			if err != nil {
				return imported, fmt.Errorf("line %d: %w", line, err)
			}
			continue
		}
		if current == nil {
			continue
		}
		if err := addContinuation(current, record, index); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) parseProduct(record []string, index map[string]int) (*domain.Product, error) {
	price, err := parseCents(pick(record, index, "price"))
	if err != nil {
		return nil, err
	}
	qty, err := parseQuantity(pick(record, index, "quantity"))
	if err != nil {
		return nil, err
	}
	p := &domain.Product{
		VendorID:   i.vendorID,
		Slug:       pick(record, index, "slug"),
		Title:      pick(record, index, "title"),
		Department: pick(record, index, "department"),
		ImagePath:  pick(record, index, "image"),
		Quantity:   qty,
		Status:     domain.ProductDraft,
	}
	if price != nil {
		p.PriceCents = *price
	}
	if i.publish {
		p.Status = domain.ProductPublished
	}
	return p, nil
}

func addContinuation(p *domain.Product, record []string, index map[string]int) error {
	if typeName, option := pick(record, index, "type"), pick(record, index, "option"); typeName != "" && option != "" {
		vt := findType(p, typeName)
		if vt == nil {
			p.VariationTypes = append(p.VariationTypes, domain.VariationType{
				Name: typeName,
				Kind: domain.VariationKind(strings.ToLower(pick(record, index, "kind"))),
			})
			vt = &p.VariationTypes[len(p.VariationTypes)-1]
		}
		vt.Options = append(vt.Options, domain.VariationOption{Name: option, ImagePath: pick(record, index, "option_image")})
	}

	combo := pick(record, index, "variation")
	if combo == "" {
		return nil
	}
	price, err := parseCents(pick(record, index, "variation_price"))
	if err != nil {
		return err
	}
	qty, err := parseQuantity(pick(record, index, "variation_quantity"))
	if err != nil {
		return err
	}
	var names []string
	for _, n := range strings.Split(combo, "|") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	p.Variations = append(p.Variations, domain.ProductVariation{
		Options:    domain.NewOptionSet(names...),
		PriceCents: price,
		Quantity:   qty,
	})
	return nil
}

func findType(p *domain.Product, name string) *domain.VariationType {
	for i := range p.VariationTypes {
		if strings.EqualFold(p.VariationTypes[i].Name, name) {
			return &p.VariationTypes[i]
		}
	}
	return nil
}

func (i *CSVImporter) save(ctx context.Context, p *domain.Product) error {
	if p.Slug == "" || p.Title == "" || p.PriceCents <= 0 {
		return fmt.Errorf("invalid product row (missing required fields) for slug %q", p.Slug)
	}
	for _, v := range p.Variations {
		types := make(map[string]bool, len(v.Options))
		for _, ref := range v.Options {
			vt, _, err := p.OptionByName(ref)
			if err != nil {
				return fmt.Errorf("product %q: variation %v: %w", p.Slug, v.Options, err)
			}
			if types[strings.ToLower(vt.Name)] {
				return fmt.Errorf("product %q: variation %v picks more than one %s", p.Slug, v.Options, vt.Name)
			}
			types[strings.ToLower(vt.Name)] = true
		}
		if len(types) != len(p.VariationTypes) {
			return fmt.Errorf("product %q: variation %v must pick one option per type", p.Slug, v.Options)
		}
	}

	if err := i.products.Create(ctx, p); err != nil {
		return fmt.Errorf("create product %q: %w", p.Slug, err)
	}
	return nil
}

// parseCents reads a decimal major-unit amount such as "19.99".
func parseCents(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("invalid price %q", v)
	}
	cents := d.Shift(2).Round(0).IntPart()
	return &cents, nil
}

// parseQuantity treats an empty cell as unlimited stock.
func parseQuantity(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid quantity %q", v)
	}
	return &n, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
