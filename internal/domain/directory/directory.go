// Package directory is the read-only doctor directory consulted by scheduling.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Doctor is the subset of the doctor profile scheduling needs.
type Doctor struct {
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	Specialization string `db:"specialization" json:"specialization"`
	Department     string `db:"department" json:"department"`
}

type Directory interface {
	ListDoctors(ctx context.Context) ([]*Doctor, error)
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
}

// MemoryDirectory serves a fixed doctor list.
type MemoryDirectory struct {
	mu      sync.RWMutex
	doctors map[string]*Doctor
}

func NewMemoryDirectory(doctors ...Doctor) *MemoryDirectory {
	d := &MemoryDirectory{doctors: make(map[string]*Doctor, len(doctors))}
	for _, doc := range doctors {
		d.Put(doc)
	}
	return d
}

// Put adds or replaces a doctor.
func (d *MemoryDirectory) Put(doc Doctor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := doc
	d.doctors[doc.ID] = &c
}

func (d *MemoryDirectory) ListDoctors(_ context.Context) ([]*Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		c := *doc
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *MemoryDirectory) GetDoctor(_ context.Context, id string) (*Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	c := *doc
	return &c, nil
}

// LoadFile reads a JSON array of doctors, e.g. a fixture exported from the HR system.
func LoadFile(path string) ([]Doctor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read doctors file: %w", err)
	}
	var doctors []Doctor
	if err := json.Unmarshal(data, &doctors); err != nil {
		return nil, fmt.Errorf("decode doctors file %s: %w", path, err)
	}
	for i, doc := range doctors {
		if doc.ID == "" {
			return nil, fmt.Errorf("doctors file %s: entry %d has no id", path, i)
		}
	}
	return doctors, nil
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type directoryPG struct{ q queryable }

func NewDirectoryPG(pool *pgxpool.Pool) Directory { return &directoryPG{q: pool} }

const doctorCols = `id, name, specialization, department`

func (r *directoryPG) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	rows, err := r.q.Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()
	var out []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.Department); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *directoryPG) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	var d Doctor
	err := r.q.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Specialization, &d.Department)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return &d, nil
}

// SeedPG upserts doctors into the doctor table so a DOCTORS_FILE export can
// populate the postgres backend.
func SeedPG(ctx context.Context, pool *pgxpool.Pool, doctors []Doctor) error {
	return (&directoryPG{q: pool}).upsert(ctx, doctors)
}

func (r *directoryPG) upsert(ctx context.Context, doctors []Doctor) error {
	for _, d := range doctors {
		_, err := r.q.Exec(ctx, `
			INSERT INTO doctor (id, name, specialization, department) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
				specialization = EXCLUDED.specialization, department = EXCLUDED.department`,
			d.ID, d.Name, d.Specialization, d.Department)
		if err != nil {
			return fmt.Errorf("upsert doctor %s: %w", d.ID, err)
		}
	}
	return nil
}
