package httpapi

import (
	"bytes"
	_ "embed"

	"github.com/MrEthical07/gateAuth/permission"
)

//go:embed catalog.yaml
var catalogYAML []byte

// DefaultCatalog returns the transactions guarding this package's
// endpoints. Servers import it at start so the administrator role can be
// granted every endpoint.
func DefaultCatalog() (*permission.Catalog, error) {
	return permission.LoadCatalog(bytes.NewReader(catalogYAML))
}
