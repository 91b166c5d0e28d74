package tiers

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/angelmondragon/ummati-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTiersYAML []byte

// Definition is one tier as written in a seed file.
type Definition struct {
	Name               string                `yaml:"name"`
	Price              decimal.Decimal       `yaml:"price"`
	BillingInterval    enums.BillingInterval `yaml:"billing_interval"`
	ExternalPriceRef   string                `yaml:"external_price_ref"`
	ExternalProductRef string                `yaml:"external_product_ref"`
	Benefits           []string              `yaml:"benefits"`
}

type definitionFile struct {
	Tiers []Definition `yaml:"tiers"`
}

// Validate enforces the catalog rules: refs are required iff the tier costs money.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("tier name is required")
	}
	if d.Price.IsNegative() {
		return fmt.Errorf("tier %q: price must be >= 0", d.Name)
	}
	if !d.BillingInterval.IsValid() {
		return fmt.Errorf("tier %q: invalid billing interval %q", d.Name, d.BillingInterval)
	}
	hasRefs := strings.TrimSpace(d.ExternalPriceRef) != "" && strings.TrimSpace(d.ExternalProductRef) != ""
	anyRef := strings.TrimSpace(d.ExternalPriceRef) != "" || strings.TrimSpace(d.ExternalProductRef) != ""
	if d.Price.IsPositive() && !hasRefs {
		return fmt.Errorf("tier %q: paid tiers need external price and product refs", d.Name)
	}
	if d.Price.IsZero() && anyRef {
		return fmt.Errorf("tier %q: free tiers must not carry external refs", d.Name)
	}
	return nil
}

// ParseDefinitions decodes a YAML seed file.
func ParseDefinitions(r io.Reader) ([]Definition, error) {
	var file definitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode tier definitions: %w", err)
	}
	if len(file.Tiers) == 0 {
		return nil, fmt.Errorf("tier definitions are empty")
	}
	seen := make(map[string]struct{}, len(file.Tiers))
	for _, def := range file.Tiers {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("tier %q defined twice", def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return file.Tiers, nil
}

// DefaultDefinitions returns the embedded catalog.
func DefaultDefinitions() ([]Definition, error) {
	return ParseDefinitions(strings.NewReader(string(defaultTiersYAML)))
}

// PriceOverride replaces the gateway refs of the first monthly paid tier.
type PriceOverride struct {
	PriceRef   string
	ProductRef string
}

// ApplyOverride returns defs with the override applied to the first paid monthly tier.
func ApplyOverride(defs []Definition, o PriceOverride) []Definition {
	if strings.TrimSpace(o.PriceRef) == "" {
		return defs
	}
	out := append([]Definition(nil), defs...)
	for i := range out {
		if out[i].Price.IsPositive() && out[i].BillingInterval == enums.BillingIntervalMonth {
			out[i].ExternalPriceRef = strings.TrimSpace(o.PriceRef)
			if strings.TrimSpace(o.ProductRef) != "" {
				out[i].ExternalProductRef = strings.TrimSpace(o.ProductRef)
			}
			break
		}
	}
	return out
}
