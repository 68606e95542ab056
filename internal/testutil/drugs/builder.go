// Package drugs provides test infrastructure for seeding the drug catalog.
// It offers a fluent API so tests describe the catalog they need and get back
// the stored drugs with their assigned ids.
//
// Example usage:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b drugs.Builder) drugs.Builder {
//		return b.WithFixture(drugs.FixtureBasicPharmacy).
//			WithDrug(model.DrugAttributes{Name: "Custom", CurrentStock: 10})
//	})
package drugs

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
)

// Builder provides a fluent interface for constructing a test catalog.
type Builder interface {
	// WithDrug adds a single drug to the builder.
	WithDrug(attrs model.DrugAttributes) Builder

	// WithDrugs adds multiple drugs, inserted in the given order.
	WithDrugs(attrs ...model.DrugAttributes) Builder

	// WithFixture adds the drugs of a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Build inserts the drugs into storage and returns them as stored.
	Build(ctx context.Context, storage service.Storage) (Drugs, error)
}

// Drugs is a collection of seeded catalog entries.
type Drugs []model.Drug

// Find returns the first drug with the given name, ignoring case, or nil.
func (d Drugs) Find(name string) *model.Drug {
	for i := range d {
		if strings.EqualFold(d[i].Name, name) {
			return &d[i]
		}
	}
	return nil
}

// MustFind returns the drug with the given name or fails the test.
func (d Drugs) MustFind(t *testing.T, name string) model.Drug {
	t.Helper()
	drug := d.Find(name)
	if drug == nil {
		t.Fatalf("drug %q not found in test data", name)
	}
	return *drug
}

type drugBuilder struct {
	t     *testing.T
	drugs []model.DrugAttributes
}

// NewBuilder creates a new catalog builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &drugBuilder{t: t}
}

func (b *drugBuilder) WithDrug(attrs model.DrugAttributes) Builder {
	b.drugs = append(b.drugs, attrs)
	return b
}

func (b *drugBuilder) WithDrugs(attrs ...model.DrugAttributes) Builder {
	b.drugs = append(b.drugs, attrs...)
	return b
}

func (b *drugBuilder) WithFixture(fixture Fixture) Builder {
	return b.WithDrugs(fixture.Drugs()...)
}

func (b *drugBuilder) Build(ctx context.Context, storage service.Storage) (Drugs, error) {
	b.t.Helper()

	result := make(Drugs, 0, len(b.drugs))
	for _, attrs := range b.drugs {
		id, err := storage.InsertDrug(ctx, attrs)
		if err != nil {
			return nil, fmt.Errorf("failed to create drug %q: %w", attrs.Name, err)
		}
		drug, err := storage.GetDrug(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to reload drug %q: %w", attrs.Name, err)
		}
		result = append(result, *drug)
	}

	return result, nil
}
