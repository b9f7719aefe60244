package models

import (
	"fmt"
	"strings"
)

// Property is a cadastral identifier: province (il), district (ilçe),
// neighborhood (mahalle), block (ada) and parcel (parsel).
type Property struct {
	Province     string `json:"province"`
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
	Block        string `json:"block"`
	Parcel       string `json:"parcel"`
}

// Normalize trims surrounding whitespace from every field.
func (p Property) Normalize() Property {
	return Property{
		Province:     strings.TrimSpace(p.Province),
		District:     strings.TrimSpace(p.District),
		Neighborhood: strings.TrimSpace(p.Neighborhood),
		Block:        strings.TrimSpace(p.Block),
		Parcel:       strings.TrimSpace(p.Parcel),
	}
}

// MissingFields returns the JSON names of empty fields, in declaration order.
func (p Property) MissingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"province", p.Province},
		{"district", p.District},
		{"neighborhood", p.Neighborhood},
		{"block", p.Block},
		{"parcel", p.Parcel},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// SearchQuery is the primary web-search query for the property.
func (p Property) SearchQuery() string {
	return fmt.Sprintf("%s %s %s ada %s parsel %s imar durumu KAK TAKS emsal yapılaşma koşulları",
		p.Province, p.District, p.Neighborhood, p.Block, p.Parcel)
}

// Summary is the human-readable descriptor passed to the language model and
// stored with every analysis.
func (p Property) Summary() string {
	return fmt.Sprintf("İl: %s, İlçe: %s, Mahalle: %s, Ada: %s, Parsel: %s",
		p.Province, p.District, p.Neighborhood, p.Block, p.Parcel)
}
