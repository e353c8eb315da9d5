package catalog

import "strings"

const (
	CategoryHosting   = "hosting"
	CategoryWordPress = "wordpress"
	CategoryEmail     = "email"
	CategorySSL       = "ssl"
	CategoryDomain    = "domain"
	CategoryOther     = "other"
)

// Categories lists the marketing sections, in menu order.
var Categories = []string{CategoryHosting, CategoryWordPress, CategoryEmail, CategorySSL, CategoryDomain}

var categoryRules = []struct {
	category string
	needles  []string
}{
	// wordpress first: "wordpress-hosting" belongs to the WordPress section
	{CategoryWordPress, []string{"wordpress", "wp-"}},
	{CategoryHosting, []string{"cpanel", "hosting", "plesk", "vps", "dedicated", "web-"}},
	{CategoryEmail, []string{"email", "o365", "workspace", "mailbox"}},
	{CategorySSL, []string{"ssl", "certificate"}},
	{CategoryDomain, []string{"domain", "tld-"}},
}

// CategoryOf maps a vendor product id to a marketing section.
func CategoryOf(productID string) string {
	id := strings.ToLower(productID)
	for _, rule := range categoryRules {
		for _, n := range rule.needles {
			if strings.Contains(id, n) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// KnownCategory reports whether c is one of Categories.
func KnownCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// tldOf extracts ".com" from ids such as "domain-com" or "tld-co-uk".
func tldOf(productID string) string {
	id := strings.ToLower(productID)
	for _, p := range []string{"domain-", "tld-"} {
		if strings.HasPrefix(id, p) {
			rest := strings.TrimPrefix(id, p)
			if rest == "" {
				return ""
			}
			return "." + strings.ReplaceAll(rest, "-", ".")
		}
	}
	return ""
}
