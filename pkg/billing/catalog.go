package billing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Plan describes a purchasable plan and how each provider identifies it.
type Plan struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description" json:"description,omitempty"`
	Price       Money               `yaml:"price" json:"price"`
	PriceAnchor *Money              `yaml:"price_anchor" json:"priceAnchor,omitempty"` // crossed-out price
	Interval    BillingInterval     `yaml:"interval" json:"interval"`
	Featured    bool                `yaml:"featured" json:"featured,omitempty"`
	Features    []string            `yaml:"features" json:"features,omitempty"`
	Providers   map[Provider]string `yaml:"providers" json:"-"` // provider -> vendor plan identifier
}

// VendorID returns the identifier the provider uses for this plan.
func (p Plan) VendorID(provider Provider) string {
	return p.Providers[provider]
}

// PlansListSource defines how plans are loaded into the catalog.
type PlansListSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

// Catalog is an immutable, validated plan list indexed by vendor identifier.
// Safe for concurrent use.
type Catalog struct {
	plans    []Plan
	byID     map[string]int
	byVendor map[Provider]map[string]int
}

// NewCatalog loads and validates plans from src.
func NewCatalog(ctx context.Context, src PlansListSource) (*Catalog, error) {
	if src == nil {
		panic("billing: PlansListSource is required")
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return buildCatalog(plans)
}

func buildCatalog(plans []Plan) (*Catalog, error) {
	c := &Catalog{
		plans:    slices.Clone(plans),
		byID:     make(map[string]int, len(plans)),
		byVendor: make(map[Provider]map[string]int),
	}

	for i, plan := range c.plans {
		if plan.ID == "" || plan.Name == "" {
			return nil, fmt.Errorf("%w: plan #%d needs an id and a name", ErrInvalidCatalog, i)
		}
		if _, dup := c.byID[plan.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidCatalog, plan.ID)
		}
		c.byID[plan.ID] = i

		for provider, vendorID := range plan.Providers {
			if _, ok := ParseProvider(string(provider)); !ok {
				return nil, fmt.Errorf("%w: plan %q references unknown provider %q", ErrInvalidCatalog, plan.ID, provider)
			}
			if vendorID == "" {
				continue
			}
			if c.byVendor[provider] == nil {
				c.byVendor[provider] = make(map[string]int)
			}
			if other, dup := c.byVendor[provider][vendorID]; dup {
				return nil, fmt.Errorf("%w: %s identifier %q used by plans %q and %q",
					ErrInvalidCatalog, provider, vendorID, c.plans[other].ID, plan.ID)
			}
			c.byVendor[provider][vendorID] = i
		}
	}

	return c, nil
}

// Plans returns a copy of all plans in catalog order.
func (c *Catalog) Plans() []Plan {
	return slices.Clone(c.plans)
}

// Plan returns the plan with the given catalog ID.
func (c *Catalog) Plan(id string) (Plan, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i], true
}

// Match returns the plan a provider's vendor identifier belongs to.
func (c *Catalog) Match(provider Provider, vendorID string) (Plan, bool) {
	if c == nil || vendorID == "" {
		return Plan{}, false
	}
	i, ok := c.byVendor[provider][vendorID]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i], true
}

// Lookup resolves either a catalog plan ID or a vendor identifier for the provider.
func (c *Catalog) Lookup(provider Provider, id string) (Plan, bool) {
	if plan, ok := c.Match(provider, id); ok {
		return plan, true
	}
	if plan, ok := c.Plan(id); ok && plan.VendorID(provider) != "" {
		return plan, true
	}
	return Plan{}, false
}

// memoryPlanSource serves a fixed plan list.
type memoryPlanSource struct {
	plans []Plan
}

// NewMemoryPlanSource returns a source over a static plan list.
func NewMemoryPlanSource(plans ...Plan) PlansListSource {
	return &memoryPlanSource{plans: plans}
}

func (s *memoryPlanSource) Load(context.Context) ([]Plan, error) {
	return slices.Clone(s.plans), nil
}

// filePlanSource reads plans from a YAML document of the form:
//
//	plans:
//	  - id: pro
//	    name: Pro
//	    price: {amount: 2900, currency: USD}
//	    interval: month
//	    providers:
//	      stripe: price_123
//	      lemonsqueezy: "456"
type filePlanSource struct {
	path string

	once  sync.Once
	plans []Plan
	err   error
}

// NewFilePlanSource returns a source reading the YAML catalog at path once.
func NewFilePlanSource(path string) PlansListSource {
	return &filePlanSource{path: path}
}

func (s *filePlanSource) Load(context.Context) ([]Plan, error) {
	s.once.Do(func() {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			s.err = fmt.Errorf("read catalog %s: %w", s.path, err)
			return
		}
		s.plans, s.err = ParsePlans(raw)
	})
	return slices.Clone(s.plans), s.err
}

// ParsePlans decodes a YAML catalog document.
func ParsePlans(raw []byte) ([]Plan, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i := range doc.Plans {
		if doc.Plans[i].Interval == "" {
			doc.Plans[i].Interval = BillingIntervalOneTime
		}
	}
	return doc.Plans, nil
}
