package permission

import "strings"

// Transaction is the authorization unit: one protected endpoint.
type Transaction struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	Order       int    `json:"order" yaml:"order"`
	ShowInMenu  bool   `json:"showInMenu" yaml:"show_in_menu"`
	Application string `json:"application,omitempty" yaml:"-"`
}

// Role is a named bundle of granted transactions.
type Role struct {
	Name         string        `json:"name"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Grants reports whether the role grants a transaction for path. Both sides
// are normalized before comparison.
func (r Role) Grants(path string) bool {
	want := NormalizePath(path)
	if want == "" {
		return false
	}
	for _, t := range r.Transactions {
		if NormalizePath(t.URL) == want {
			return true
		}
	}
	return false
}

// NormalizePath lower-cases p, drops any query string, ensures a leading
// slash and removes a trailing one. An empty input stays empty.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ""
	}
	p = strings.ToLower(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// NormalizeRoleName folds a role name for case-insensitive comparison.
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
