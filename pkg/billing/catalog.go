package billing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier is one purchasable subscription tier: an annual price in whole
// currency units plus the provider's price reference used at checkout and
// when charging a stored instrument.
type Tier struct {
	Amount   int    `yaml:"amount"`
	PriceRef string `yaml:"price_ref"`
}

// Catalog describes the purchasable subscription tiers and the trial
// configuration. It is loaded once at startup from a YAML file checked into
// the deployment, e.g.:
//
//	trial_days: 14
//	trial_price_ref: pri_sprout_trial
//	tiers:
//	  - amount: 5
//	    price_ref: pri_sprout_annual_5
//	  - amount: 12
//	    price_ref: pri_sprout_annual_12
type Catalog struct {
	TrialDays     int    `yaml:"trial_days"`
	TrialPriceRef string `yaml:"trial_price_ref"`
	Tiers         []Tier `yaml:"tiers"`
}

// LoadCatalog reads and validates a tier catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrCatalogNotLoaded, err)
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Join(ErrCatalogNotLoaded, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks internal consistency. Catches configuration mistakes at
// startup instead of at the first checkout.
func (c *Catalog) Validate() error {
	if c.TrialDays <= 0 {
		return fmt.Errorf("%w: trial_days %d", ErrInvalidTrialDays, c.TrialDays)
	}
	if len(c.Tiers) == 0 {
		return ErrEmptyTierCatalog
	}
	for _, t := range c.Tiers {
		if t.Amount <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidTier, t.Amount)
		}
		if t.PriceRef == "" {
			return fmt.Errorf("%w: tier %d has no price_ref", ErrInvalidTier, t.Amount)
		}
	}
	return nil
}

// ValidTier reports whether an annual amount is purchasable.
func (c *Catalog) ValidTier(amount int) bool {
	_, ok := c.PriceRef(amount)
	return ok
}

// PriceRef resolves the provider price reference for a tier amount.
func (c *Catalog) PriceRef(amount int) (string, bool) {
	for _, t := range c.Tiers {
		if t.Amount == amount {
			return t.PriceRef, true
		}
	}
	return "", false
}
