// Package media turns stored image paths into public URLs.
package media

import (
	"strings"

	"marketplace-checkout/internal/domain"
)

type Resolver struct {
	host string
}

func NewResolver(host string) *Resolver {
	return &Resolver{host: strings.TrimRight(host, "/")}
}

// URL returns path unchanged when it is already absolute.
func (r *Resolver) URL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if r.host == "" {
		return "/" + strings.TrimLeft(path, "/")
	}
	return r.host + "/" + strings.TrimLeft(path, "/")
}

func (r *Resolver) ProductImage(p domain.Product) string {
	return r.URL(p.ImagePath)
}

// ImageFor returns the image of the first chosen option that has one, in
// variation type order, falling back to the product image.
func (r *Resolver) ImageFor(p domain.Product, set domain.OptionSet) string {
	for _, opt := range p.ChosenOptions(set) {
		if opt.ImagePath != "" {
			return r.URL(opt.ImagePath)
		}
	}
	return r.ProductImage(p)
}
