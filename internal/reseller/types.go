package reseller

// VendorProduct is a catalog entry as the reseller API returns it.
// Prices arrive pre-formatted for the requested currency and market.
type VendorProduct struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	ListPrice string `json:"listPrice"`
	SalePrice string `json:"salePrice"`
	Term      string `json:"term"`
	ImageURL  string `json:"imageUrl"`
}

type productsResponse struct {
	Products []VendorProduct `json:"products"`
}

type VendorDomain struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	ListPrice string `json:"listPrice"`
	SalePrice string `json:"salePrice"`
}

type DomainSearchResponse struct {
	ExactMatchDomain *VendorDomain  `json:"exactMatchDomain"`
	SuggestedDomains []VendorDomain `json:"suggestedDomains"`
}

type VendorAgreement struct {
	AgreementKey string `json:"agreementKey"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Content      string `json:"content"`
}

type VendorCartItem struct {
	ItemID    string `json:"itemId"`
	ID        string `json:"id"`
	Label     string `json:"label"`
	Domain    string `json:"domain"`
	Quantity  int    `json:"quantity"`
	Term      string `json:"term"`
	ListPrice string `json:"listPrice"`
	SalePrice string `json:"salePrice"`
}

type VendorCart struct {
	Items  []VendorCartItem `json:"items"`
	Totals struct {
		Subtotal string `json:"subtotal"`
	} `json:"totals"`
	NextStepURL string `json:"nextStepUrl"`
}

// CartAddItem is one line of an add-to-cart request.
type CartAddItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity,omitempty"`
	Domain   string `json:"domain,omitempty"`
}

type cartAddRequest struct {
	Items []CartAddItem `json:"items"`
}

// CartResult is a vendor cart plus the token that addresses it from now on.
// Token is the one sent with the request unless the vendor rotated it.
type CartResult struct {
	Cart  VendorCart
	Token string
}
