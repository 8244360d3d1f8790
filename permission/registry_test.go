package permission

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistryUniqueness(t *testing.T) {
	r := NewRegistry()

	stored, err := r.Register(Transaction{Code: "USR-LIST", URL: "/API/v1/Users-List"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if stored.URL != "/api/v1/users-list" {
		t.Fatalf("expected normalized url, got %q", stored.URL)
	}

	if _, err := r.Register(Transaction{Code: "USR-LIST", URL: "/other"}); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
	if _, err := r.Register(Transaction{Code: "USR-LIST2", URL: "/api/v1/users-list/"}); !errors.Is(err, ErrDuplicateURL) {
		t.Fatalf("expected ErrDuplicateURL, got %v", err)
	}
	if _, err := r.Register(Transaction{Code: "", URL: "/x"}); err == nil {
		t.Fatal("expected empty code to fail")
	}
	if _, err := r.Register(Transaction{Code: "NOURL"}); err == nil {
		t.Fatal("expected empty url to fail")
	}
	if _, err := r.Register(Transaction{Code: strings.Repeat("X", 21), URL: "/long"}); err == nil {
		t.Fatal("expected overlong code to fail")
	}

	if tx, ok := r.ByURL("/api/v1/USERS-LIST"); !ok || tx.Code != "USR-LIST" {
		t.Fatal("expected lookup by url to succeed")
	}
	if _, ok := r.ByCode("USR-LIST"); !ok {
		t.Fatal("expected lookup by code to succeed")
	}

	r.Freeze()
	if _, err := r.Register(Transaction{Code: "LATE", URL: "/late"}); err == nil {
		t.Fatal("expected frozen registry to reject registration")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 transaction, got %d", r.Count())
	}
}

func TestRegistryAllOrdering(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register(Transaction{Code: "B", URL: "/b", Order: 2})
	_, _ = r.Register(Transaction{Code: "C", URL: "/c", Order: 1})
	_, _ = r.Register(Transaction{Code: "A", URL: "/a", Order: 2})

	all := r.All()
	got := []string{all[0].Code, all[1].Code, all[2].Code}
	if strings.Join(got, ",") != "C,A,B" {
		t.Fatalf("unexpected order %v", got)
	}
}

const sampleCatalog = `
modules:
  - code: CORE
    name: Core
    applications:
      - code: USERS
        name: Users and roles
        order: 1
        transactions:
          - code: USR-CREATE
            name: Create user
            url: /api/v1/Create-User
            order: 1
          - code: USR-LIST
            name: List users
            url: /api/v1/users-list
            order: 2
            show_in_menu: true
      - code: TRX
        name: Transactions
        transactions:
          - code: TRX-LIST
            name: List transactions
            url: /api/v1/transactions-list
            order: 3
`

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	txs, err := c.Transactions()
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[0].URL != "/api/v1/create-user" || txs[0].Application != "USERS" {
		t.Fatalf("unexpected first transaction %+v", txs[0])
	}
	if !txs[1].ShowInMenu {
		t.Fatal("expected show_in_menu to decode")
	}
}

func TestLoadCatalogRejectsDuplicatesAndUnknownFields(t *testing.T) {
	dup := `
modules:
  - code: M
    applications:
      - code: A
        transactions:
          - {code: X, url: /x}
          - {code: Y, url: /X/}
`
	if _, err := LoadCatalog(strings.NewReader(dup)); !errors.Is(err, ErrDuplicateURL) {
		t.Fatalf("expected ErrDuplicateURL, got %v", err)
	}

	unknown := `
modules:
  - code: M
    bogus: true
`
	if _, err := LoadCatalog(strings.NewReader(unknown)); err == nil {
		t.Fatal("expected unknown field to fail")
	}

	empty, err := LoadCatalog(strings.NewReader(""))
	if err != nil || len(empty.Modules) != 0 {
		t.Fatalf("expected empty catalog, got %v", err)
	}
}
