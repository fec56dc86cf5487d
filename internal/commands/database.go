package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/infrastructure/database"
	"github.com/ishandutta2007/taskt/internal/script"
)

func (b builder) database() []script.Descriptor {
	def := b.settings.DefaultInstanceName(automation.KindDatabase)
	instance := script.PropertySpec{Name: "instance", Default: def}

	return []script.Descriptor{
		{
			Kind:        "database_connect",
			Group:       GroupDatabase,
			Description: "Opens a SQLite database as a named instance.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "path", Required: true, Description: "database file, or :memory:"},
				{Name: "read_only", Default: "false"},
				{Name: "busy_timeout", Default: "5", Description: "seconds to wait for a lock"},
			},
			Validate: func(p map[string]string) []string { return b.checkInt(p, "busy_timeout", 0) },
			Display:  func(p map[string]string) string { return instanceName(p, def) + ": " + p["path"] },
			Run: func(ctx context.Context, rc *automation.RunContext, p map[string]string) error {
				readOnly, err := boolProp(p, "read_only", false)
				if err != nil {
					return err
				}
				busy, err := intProp(p, "busy_timeout", 5)
				if err != nil {
					return err
				}
				db, err := database.Open(ctx, database.Config{
					Path:        strings.TrimSpace(p["path"]),
					BusyTimeout: busy,
					ReadOnly:    readOnly,
				})
				if err != nil {
					return err
				}
				if err := rc.Instances.Register(instanceName(p, def), automation.KindDatabase, db); err != nil {
					_ = db.Close()
					return err
				}
				return nil
			},
		},
		{
			Kind:        "database_query",
			Group:       GroupDatabase,
			Description: "Runs a query and stores the rows as a JSON array of objects.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "query", Required: true},
				{Name: "output", Required: true},
				{Name: "row_count"},
			},
			Display: func(p map[string]string) string { return p["query"] },
			Run: func(ctx context.Context, rc *automation.RunContext, p map[string]string) error {
				db, err := automation.InstanceAs[*database.DB](rc.Instances, instanceName(p, def), automation.KindDatabase)
				if err != nil {
					return err
				}
				rows, err := queryRows(ctx, db.DB, p["query"])
				if err != nil {
					return err
				}
				data, err := json.Marshal(rows)
				if err != nil {
					return fmt.Errorf("encoding rows: %w", err)
				}
				if err := setOutput(rc, p, "output", string(data)); err != nil {
					return err
				}
				return setOutput(rc, p, "row_count", len(rows))
			},
		},
		{
			Kind:        "database_execute",
			Group:       GroupDatabase,
			Description: "Runs a statement that returns no rows.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "query", Required: true},
				{Name: "rows_affected"},
			},
			Display: func(p map[string]string) string { return p["query"] },
			Run: func(ctx context.Context, rc *automation.RunContext, p map[string]string) error {
				db, err := automation.InstanceAs[*database.DB](rc.Instances, instanceName(p, def), automation.KindDatabase)
				if err != nil {
					return err
				}
				res, err := db.ExecContext(ctx, p["query"])
				if err != nil {
					return fmt.Errorf("executing statement: %w", err)
				}
				n, err := res.RowsAffected()
				if err != nil {
					return fmt.Errorf("checking rows affected: %w", err)
				}
				return setOutput(rc, p, "rows_affected", n)
			},
		},
		{
			Kind:        "database_close",
			Group:       GroupDatabase,
			Description: "Closes a database instance.",
			Properties:  []script.PropertySpec{instance},
			Display:     func(p map[string]string) string { return instanceName(p, def) },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				name := instanceName(p, def)
				if _, err := rc.Instances.Lookup(name, automation.KindDatabase); err != nil {
					return err
				}
				return rc.Instances.Release(name)
			},
		},
	}
}

// queryRows returns every row as a column → value map. Byte slices are
// returned as text.
func queryRows(ctx context.Context, db *sql.DB, query string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
