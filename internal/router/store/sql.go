package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/qustavo/dotsql"

	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
)

//go:embed queries/*.sql
var queriesFS embed.FS

type routerRow struct {
	ID             int64  `db:"id"`
	Backend        string `db:"backend_name"`
	Tenant         string `db:"enterprise_uuid"`
	Enabled        bool   `db:"enabled"`
	Configurations string `db:"configurations"`
	ModifiedAt     int64  `db:"modified_at"`
}

func (r routerRow) config() (*router.Config, error) {
	c := &router.Config{
		ID:         r.ID,
		Backend:    r.Backend,
		Tenant:     r.Tenant,
		Enabled:    r.Enabled,
		ModifiedAt: time.UnixMicro(r.ModifiedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.Configurations), &c.Hosts); err != nil {
		return nil, fmt.Errorf("router configuration %d: decode hosts: %w", r.ID, err)
	}
	return c, nil
}

// SQLStore keeps router configs in the router_configurations table.
type SQLStore struct {
	notifier
	db  *sqlx.DB
	dot *dotsql.DotSql
	now func() time.Time
}

// OpenDB opens a database from a sqlite:// or postgres:// URL.
func OpenDB(dbURL string) (*sqlx.DB, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	var driverName, dataSource string
	switch u.Scheme {
	case "sqlite":
		driverName = "sqlite3"
		if u.Host != "" {
			dataSource = u.Host + u.Path
		} else {
			dataSource = u.Path
		}
	case "postgres":
		driverName = "postgres"
		dataSource = dbURL
	default:
		return nil, fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}

	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewSQLStore loads the embedded queries and creates the table if needed.
func NewSQLStore(ctx context.Context, db *sqlx.DB) (*SQLStore, error) {
	content, err := queriesFS.ReadFile("queries/router_configurations.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	dot, err := dotsql.LoadFromString(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	s := &SQLStore{db: db, dot: dot, now: time.Now}

	var create string
	switch db.DriverName() {
	case "sqlite3":
		create = "create-router-configurations-sqlite"
	case "postgres":
		create = "create-router-configurations-postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
	for _, name := range []string{create, "create-router-configurations-index"} {
		if _, err := s.exec(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to migrate router_configurations: %w", err)
		}
	}
	return s, nil
}

func (s *SQLStore) query(name string) (string, error) {
	q, err := s.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return s.db.Rebind(q), nil
}

func (s *SQLStore) exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error) {
	q, err := s.query(name)
	if err != nil {
		return nil, err
	}
	return s.db.ExecContext(ctx, q, args...)
}

func (s *SQLStore) get(ctx context.Context, name string, dest interface{}, args ...interface{}) error {
	q, err := s.query(name)
	if err != nil {
		return err
	}
	return s.db.GetContext(ctx, dest, q, args...)
}

func (s *SQLStore) LatestEnabled(ctx context.Context, backend, tenant string) (*router.Config, error) {
	c, err := s.latest(ctx, backend, tenant)
	if err != nil || c != nil || tenant == "" {
		return c, err
	}
	return s.latest(ctx, backend, "")
}

func (s *SQLStore) latest(ctx context.Context, backend, tenant string) (*router.Config, error) {
	var row routerRow
	err := s.get(ctx, "latest-enabled-router", &row, backend, tenant, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest enabled router %s/%s: %w", backend, tenant, err)
	}
	return row.config()
}

// Get returns the config with the given id.
func (s *SQLStore) Get(ctx context.Context, id int64) (*router.Config, error) {
	var row routerRow
	err := s.get(ctx, "get-router-configuration", &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.config()
}

func (s *SQLStore) List(ctx context.Context) ([]*router.Config, error) {
	q, err := s.query("list-router-configurations")
	if err != nil {
		return nil, err
	}
	var rows []routerRow
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list router configurations: %w", err)
	}
	out := make([]*router.Config, 0, len(rows))
	for _, r := range rows {
		c, err := r.config()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Save inserts c when its ID is zero and updates the row otherwise. The
// assigned ID and modification time are written back to c.
func (s *SQLStore) Save(ctx context.Context, c *router.Config) error {
	hosts, err := json.Marshal(c.Hosts)
	if err != nil {
		return fmt.Errorf("encode hosts: %w", err)
	}
	if c.Hosts == nil {
		hosts = []byte("[]")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if c.Enabled {
		q, err := s.query("count-enabled-conflicts")
		if err != nil {
			return err
		}
		var n int
		if err := tx.GetContext(ctx, &n, q, c.Backend, c.Tenant, true, c.ID); err != nil {
			return fmt.Errorf("check duplicate router: %w", err)
		}
		if n > 0 {
			return ErrDuplicateRouter
		}
	}

	var prev *router.Config
	modified := s.now().UTC()
	if c.ID == 0 {
		q, err := s.query("insert-router-configuration")
		if err != nil {
			return err
		}
		var id int64
		if err := tx.GetContext(ctx, &id, q, c.Backend, c.Tenant, c.Enabled, string(hosts), modified.UnixMicro()); err != nil {
			return fmt.Errorf("insert router configuration: %w", err)
		}
		c.ID = id
	} else {
		q, err := s.query("get-router-configuration")
		if err != nil {
			return err
		}
		var row routerRow
		if err := tx.GetContext(ctx, &row, q, c.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		prev = &router.Config{Backend: row.Backend, Tenant: row.Tenant}

		q, err = s.query("update-router-configuration")
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, c.Backend, c.Tenant, c.Enabled, string(hosts), modified.UnixMicro(), c.ID); err != nil {
			return fmt.Errorf("update router configuration %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.ModifiedAt = time.UnixMicro(modified.UnixMicro()).UTC()

	changes := []Change{changeOf(c)}
	if prev != nil && prev.Key() != c.Key() {
		changes = append(changes, changeOf(prev))
	}
	s.notify(changes...)
	return nil
}

// Delete removes the row with the given id.
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, "delete-router-configuration", id); err != nil {
		return fmt.Errorf("delete router configuration %d: %w", id, err)
	}
	s.notify(changeOf(c))
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
