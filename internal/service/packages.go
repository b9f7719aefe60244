package service

// Package is a purchasable bundle of analysis credits.
type Package struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Credits     int     `json:"credits"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Popular     bool    `json:"popular,omitempty"`

	// CheckoutURL is the provider product page the buyer is sent to.
	CheckoutURL string `json:"-"`

	// minPrice and maxPrice bound the paid amounts that resolve to this
	// package, inclusive, to absorb rounding on the provider side.
	minPrice float64
	maxPrice float64
}

var catalog = []Package{
	{
		ID: "package_20", Name: "Standart Plan", Credits: 20, Price: 50.0,
		Description: "Küçük projeler için",
		CheckoutURL: "https://shopier.com/39003278",
		minPrice:    48, maxPrice: 52,
	},
	{
		ID: "package_50", Name: "Pro Plan", Credits: 50, Price: 75.0,
		Description: "Orta ölçekli projeler için", Popular: true,
		CheckoutURL: "https://shopier.com/42901869",
		minPrice:    73, maxPrice: 77,
	},
	{
		ID: "package_100", Name: "Uzman Plan", Credits: 100, Price: 100.0,
		Description: "Büyük projeler için",
		CheckoutURL: "https://shopier.com/42901899",
		minPrice:    98, maxPrice: 102,
	},
}

// Packages returns the static credit catalog.
func Packages() []Package {
	out := make([]Package, len(catalog))
	copy(out, catalog)
	return out
}

// PackageByID looks up a package by its identifier.
func PackageByID(id string) (Package, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// ResolvePackage maps a paid price to the package whose band contains it.
// The currency is not considered.
func ResolvePackage(price float64) (Package, bool) {
	for _, p := range catalog {
		if price >= p.minPrice && price <= p.maxPrice {
			return p, true
		}
	}
	return Package{}, false
}
