package records

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

//go:embed fixtures/*.json
var embeddedFixtures embed.FS

const (
	employeesFile = "employees.json"
	benefitsFile  = "benefits.json"
	rulesFile     = "rules.json"
)

// Fixtures is the JSON-backed seed data for the store.
type Fixtures struct {
	Employees []model.EmployeeRecord
	Benefits  []model.BenefitsRecord
	Rules     []model.EligibilityRule
}

// LoadFixtures reads employees.json, benefits.json and rules.json from fsys.
func LoadFixtures(fsys fs.FS) (*Fixtures, error) {
	var fx Fixtures
	if err := readJSON(fsys, employeesFile, &fx.Employees); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, benefitsFile, &fx.Benefits); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, rulesFile, &fx.Rules); err != nil {
		return nil, err
	}
	return &fx, nil
}

// DefaultFixtures returns the fixtures compiled into the binary.
func DefaultFixtures() (*Fixtures, error) {
	sub, err := fs.Sub(embeddedFixtures, "fixtures")
	if err != nil {
		return nil, err
	}
	return LoadFixtures(sub)
}

func loadConfiguredFixtures(cfg model.RecordsConfig) (*Fixtures, error) {
	if cfg.FixturesDir == "" {
		return DefaultFixtures()
	}
	return LoadFixtures(os.DirFS(cfg.FixturesDir))
}

func readJSON(fsys fs.FS, name string, v any) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
