package bigquery

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
)

// Migration is one versioned DDL script.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseMigrationFilename splits 0001_name.sql into its version and name.
func ParseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// ReadMigrations loads every migration in dir, sorted by version, with the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders filled in. Checksums cover
// the file as written so a different target dataset is not a change.
func ReadMigrations(dir, project, dataset string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := ParseMigrationFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Migrator applies pending migrations and records them in schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	project   string
	dataset   string
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator creates a migrator for project.dataset.
func NewMigrator(client *bigquery.Client, project, dataset, appliedBy string, log zerolog.Logger) *Migrator {
	return &Migrator{client: client, project: project, dataset: dataset, appliedBy: appliedBy, log: log}
}

// Apply runs every migration not yet recorded and returns how many ran.
func (m *Migrator) Apply(ctx context.Context, migrations []Migration) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	count := 0
	for _, mig := range migrations {
		log := m.log.With().Int("version", mig.Version).Str("name", mig.Name).Logger()
		if done[mig.Version] {
			log.Debug().Msg("Migration already applied")
			continue
		}

		if err := runDML(ctx, m.client.Query(mig.SQL)); err != nil {
			return count, fmt.Errorf("executing migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return count, fmt.Errorf("recording migration %04d_%s: %w", mig.Version, mig.Name, err)
		}

		log.Info().Msg("Migration applied")
		count++
	}

	return count, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return runDML(ctx, m.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, tableRef(m.project, m.dataset, "schema_migrations"))))
}

func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, tableRef(m.project, m.dataset, "schema_migrations")))

	rows, err := readAll[struct {
		Version   int64               `bigquery:"version"`
		Name      string              `bigquery:"name"`
		AppliedAt time.Time           `bigquery:"applied_at"`
		Checksum  bigquery.NullString `bigquery:"checksum"`
		AppliedBy bigquery.NullString `bigquery:"applied_by"`
	}](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *Migrator) record(ctx context.Context, mig Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, tableRef(m.project, m.dataset, "schema_migrations")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	return runDML(ctx, q)
}
