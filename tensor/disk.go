package tensor

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableChain = "chain"
	tableEntry = "entry"
)

// DB persists named chains of tensors in a sqlite database.
type DB struct {
	Path string

	db *sql.DB
}

// OpenDB opens the database at dbPath, creating it if it does not exist.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return &DB{Path: dbPath, db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// SaveChain stores the tensors of a chain under name, replacing any chain
// previously stored under the same name.
func (d *DB) SaveChain(name string, chain []*Dense) error {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()

	if err := deleteChain(ctx, d.db, name); err != nil {
		return errors.Wrap(err, "")
	}

	for ord, t := range chain {
		sqlStr := fmt.Sprintf(`INSERT INTO %s (name, ord, shape) VALUES (?, ?, ?)`, tableChain)
		if _, err := d.db.ExecContext(ctx, sqlStr, name, ord, formatShape(t.shape)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %d", name, ord))
		}

		sqlStr = fmt.Sprintf(`INSERT OR REPLACE INTO %s (name, ord, i, v) VALUES (?, ?, ?, ?)`, tableEntry)
		for i, v := range t.data {
			if _, err := d.db.ExecContext(ctx, sqlStr, name, ord, i, v); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%s %d %d", name, ord, i))
			}
		}
	}
	return nil
}

// LoadChain loads the chain stored under name.
func (d *DB) LoadChain(name string) ([]*Dense, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()

	chain, err := loadShapes(ctx, d.db, name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(chain) == 0 {
		return nil, errors.Errorf("%s", name)
	}

	sqlStr := fmt.Sprintf(`SELECT ord, i, v FROM %s WHERE name=? ORDER BY ord, i`, tableEntry)
	rows, err := d.db.QueryContext(ctx, sqlStr, name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	for rows.Next() {
		var ord, i int
		var v float64
		if err := rows.Scan(&ord, &i, &v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if ord < 0 || ord >= len(chain) || i < 0 || i >= len(chain[ord].data) {
			return nil, errors.Errorf("%d %d", ord, i)
		}
		chain[ord].data[i] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	return chain, nil
}

// Chains returns the names of all stored chains in ascending order.
func (d *DB) Chains() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT DISTINCT name FROM %s ORDER BY name`, tableChain)
	rows, err := d.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return names, nil
}

func loadShapes(ctx context.Context, db *sql.DB, name string) ([]*Dense, error) {
	sqlStr := fmt.Sprintf(`SELECT ord, shape FROM %s WHERE name=? ORDER BY ord`, tableChain)
	rows, err := db.QueryContext(ctx, sqlStr, name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	chain := make([]*Dense, 0)
	for rows.Next() {
		var ord int
		var shapeStr string
		if err := rows.Scan(&ord, &shapeStr); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if ord != len(chain) {
			return nil, errors.Errorf("%d %d", ord, len(chain))
		}
		shape, err := parseShape(shapeStr)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		chain = append(chain, Zeros(shape...))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return chain, nil
}

func deleteChain(ctx context.Context, db *sql.DB, name string) error {
	for _, table := range []string{tableChain, tableEntry} {
		sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE name=?`, table)
		if _, err := db.ExecContext(ctx, sqlStr, name); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %s", table, name))
		}
	}
	return nil
}

func formatShape(shape []int) string {
	strs := make([]string, 0, len(shape))
	for _, d := range shape {
		strs = append(strs, strconv.Itoa(d))
	}
	return strings.Join(strs, ",")
}

func parseShape(s string) ([]int, error) {
	strs := strings.Split(s, ",")
	shape := make([]int, 0, len(strs))
	for _, str := range strs {
		d, err := strconv.Atoi(str)
		if err != nil {
			return nil, errors.Wrap(err, s)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT, ord INTEGER, shape TEXT, PRIMARY KEY (name, ord)) STRICT`, tableChain)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT, ord INTEGER, i INTEGER, v REAL, PRIMARY KEY (name, ord, i)) STRICT`, tableEntry)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
