package drugs

import "github.com/Veraticus/drug-deposit/internal/model"

// Fixture represents a predefined catalog for testing.
type Fixture interface {
	Name() string
	Drugs() []model.DrugAttributes
}

type fixture struct {
	name  string
	drugs []model.DrugAttributes
}

func (f *fixture) Name() string { return f.name }

// Drugs returns a copy so tests cannot mutate the shared fixture.
func (f *fixture) Drugs() []model.DrugAttributes {
	out := make([]model.DrugAttributes, len(f.drugs))
	copy(out, f.drugs)
	return out
}

// Predefined fixtures.
var (
	// FixtureBasicPharmacy is a small stocked catalog with distinct names.
	FixtureBasicPharmacy Fixture = &fixture{
		name: "BasicPharmacy",
		drugs: []model.DrugAttributes{
			{Name: "Paracetamol", Dose: "500", Units: "mg", Expiration: "2026-05", PiecesPerBox: 20, Type: "tablet", Lote: "PA123", CurrentStock: 100},
			{Name: "Ibuprofen", Dose: "400", Units: "mg", Expiration: "2025-11", PiecesPerBox: 30, Type: "tablet", Lote: "IB777", CurrentStock: 60},
			{Name: "Amoxicillin", Dose: "875", Units: "mg", Expiration: "2025-08", PiecesPerBox: 14, Type: "capsule", Lote: "AM001", CurrentStock: 28},
		},
	}

	// FixtureLookalikes holds drugs that differ only in dose or lot.
	FixtureLookalikes Fixture = &fixture{
		name: "Lookalikes",
		drugs: []model.DrugAttributes{
			{Name: "Dipirona", Dose: "500", Units: "mg", Lote: "D1"},
			{Name: "Dipirona", Dose: "1", Units: "g", Lote: "D2"},
			{Name: "Dipyrone", Dose: "500", Units: "mg", Lote: "D3"},
		},
	}
)
