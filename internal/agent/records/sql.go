package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	errx "github.com/hr-benefits-assistant/server/internal/core/error"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

var commonSchema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		date_of_birth TEXT NOT NULL,
		ssn_suffix TEXT NOT NULL,
		employment_status TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		weekly_hours INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS benefits (
		employee_id TEXT PRIMARY KEY REFERENCES employees(id),
		payload TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS eligibility_rules (
		benefit_type TEXT PRIMARY KEY,
		full_time_only INTEGER NOT NULL DEFAULT 0,
		minimum_tenure_months INTEGER,
		minimum_hours INTEGER,
		part_time_eligible_after_months INTEGER
	)`,
}

var updateLogSchema = map[string]string{
	driverSQLite: `CREATE TABLE IF NOT EXISTS benefit_updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL,
		benefit_type TEXT NOT NULL,
		updates TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	driverPostgres: `CREATE TABLE IF NOT EXISTS benefit_updates (
		id BIGSERIAL PRIMARY KEY,
		employee_id TEXT NOT NULL,
		benefit_type TEXT NOT NULL,
		updates TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// sqlStore persists records in SQLite (modernc.org/sqlite) or Postgres (lib/pq).
type sqlStore struct {
	db     *sql.DB
	driver string
}

func openSQL(ctx context.Context, driver, dsn string) (*sqlStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("records dsn not set")
	}
	if driver == driverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == driverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	s := &sqlStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate records schema: %w", err)
	}
	logx.Debug().Str("driver", driver).Msg("records database ready")
	return s, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	stmts := append(append([]string{}, commonSchema...), updateLogSchema[s.driver])
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that need $n.
func (s *sqlStore) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// seed loads fixtures into empty tables. Tables that already hold rows are left alone.
func (s *sqlStore) seed(ctx context.Context, fx *Fixtures) error {
	var employees int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&employees); err != nil {
		return errx.WrapStore(err)
	}
	var rules int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eligibility_rules`).Scan(&rules); err != nil {
		return errx.WrapStore(err)
	}
	if employees > 0 && rules > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapStore(err)
	}
	defer tx.Rollback()

	if employees == 0 {
		for _, e := range fx.Employees {
			var hours sql.NullInt64
			if e.WeeklyHours != nil {
				hours = sql.NullInt64{Int64: int64(*e.WeeklyHours), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO employees (id, name, date_of_birth, ssn_suffix, employment_status, hire_date, weekly_hours) VALUES (?, ?, ?, ?, ?, ?, ?)`),
				e.ID, e.Name, e.DateOfBirth, e.SSNSuffix, string(e.EmploymentStatus), e.HireDate, hours); err != nil {
				return errx.WrapStore(fmt.Errorf("seed employee %s: %w", e.ID, err))
			}
		}
		for _, b := range fx.Benefits {
			payload, err := json.Marshal(b.Benefits)
			if err != nil {
				return fmt.Errorf("marshal benefits for %s: %w", b.EmployeeID, err)
			}
			version := b.Version
			if version == 0 {
				version = 1
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO benefits (employee_id, payload, version, updated_at) VALUES (?, ?, ?, ?)`),
				b.EmployeeID, string(payload), version, formatTime(b.UpdatedAt)); err != nil {
				return errx.WrapStore(fmt.Errorf("seed benefits %s: %w", b.EmployeeID, err))
			}
		}
	}
	if rules == 0 {
		for _, r := range fx.Rules {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO eligibility_rules (benefit_type, full_time_only, minimum_tenure_months, minimum_hours, part_time_eligible_after_months) VALUES (?, ?, ?, ?, ?)`),
				NormalizeBenefitType(r.BenefitType), boolToInt(r.FullTimeOnly), nullInt(r.MinimumTenureMonths), nullInt(r.MinimumHours), nullInt(r.PartTimeEligibleAfterMonths)); err != nil {
				return errx.WrapStore(fmt.Errorf("seed rule %s: %w", r.BenefitType, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.WrapStore(err)
	}
	logx.Info().Int("employees", len(fx.Employees)).Int("rules", len(fx.Rules)).Msg("records database seeded from fixtures")
	return nil
}

func (s *sqlStore) load(ctx context.Context) (*Fixtures, error) {
	var fx Fixtures

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, date_of_birth, ssn_suffix, employment_status, hire_date, weekly_hours FROM employees ORDER BY id`)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	for rows.Next() {
		var e model.EmployeeRecord
		var status string
		var hours sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Name, &e.DateOfBirth, &e.SSNSuffix, &status, &e.HireDate, &hours); err != nil {
			rows.Close()
			return nil, errx.WrapStore(err)
		}
		e.EmploymentStatus = model.EmploymentStatus(status)
		e.WeeklyHours = intPtr(hours)
		fx.Employees = append(fx.Employees, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT employee_id, payload, version, updated_at FROM benefits ORDER BY employee_id`)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	for rows.Next() {
		var b model.BenefitsRecord
		var payload, updatedAt string
		if err := rows.Scan(&b.EmployeeID, &payload, &b.Version, &updatedAt); err != nil {
			rows.Close()
			return nil, errx.WrapStore(err)
		}
		if err := json.Unmarshal([]byte(payload), &b.Benefits); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode benefits payload for %s: %w", b.EmployeeID, err)
		}
		if updatedAt != "" {
			if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
				b.UpdatedAt = t
			}
		}
		fx.Benefits = append(fx.Benefits, b)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT benefit_type, full_time_only, minimum_tenure_months, minimum_hours, part_time_eligible_after_months FROM eligibility_rules ORDER BY benefit_type`)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	for rows.Next() {
		var r model.EligibilityRule
		var fullTime int64
		var tenure, hours, partTime sql.NullInt64
		if err := rows.Scan(&r.BenefitType, &fullTime, &tenure, &hours, &partTime); err != nil {
			rows.Close()
			return nil, errx.WrapStore(err)
		}
		r.FullTimeOnly = fullTime != 0
		r.MinimumTenureMonths = intPtr(tenure)
		r.MinimumHours = intPtr(hours)
		r.PartTimeEligibleAfterMonths = intPtr(partTime)
		fx.Rules = append(fx.Rules, r)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return &fx, nil
}

func (s *sqlStore) recordUpdate(ctx context.Context, rec model.BenefitsRecord, benefitType string, updates map[string]any, effectiveDate string) error {
	payload, err := json.Marshal(rec.Benefits)
	if err != nil {
		return fmt.Errorf("marshal benefits: %w", err)
	}
	delta, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("marshal updates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapStore(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO benefits (employee_id, payload, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (employee_id) DO UPDATE SET payload = excluded.payload, version = excluded.version, updated_at = excluded.updated_at`),
		rec.EmployeeID, string(payload), rec.Version, formatTime(rec.UpdatedAt)); err != nil {
		return errx.WrapStore(err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO benefit_updates (employee_id, benefit_type, updates, effective_date, version, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		rec.EmployeeID, benefitType, string(delta), effectiveDate, rec.Version, formatTime(rec.UpdatedAt)); err != nil {
		return errx.WrapStore(err)
	}
	if err := tx.Commit(); err != nil {
		return errx.WrapStore(err)
	}
	return nil
}

func (s *sqlStore) close() error {
	return s.db.Close()
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return errx.WrapStore(err)
	}
	return rows.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
