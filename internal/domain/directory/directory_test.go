package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestMemoryDirectory_ListSortedByName(t *testing.T) {
	d := NewMemoryDirectory(
		Doctor{ID: "d2", Name: "Zhou", Department: "cardiology"},
		Doctor{ID: "d1", Name: "Adams", Department: "orthopedics"},
	)
	docs, err := d.ListDoctors(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Fatalf("unexpected order: %+v", docs)
	}
}

func TestMemoryDirectory_GetDoctor(t *testing.T) {
	d := NewMemoryDirectory(Doctor{ID: "d1", Name: "Adams"})
	doc, err := d.GetDoctor(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc.Name = "mutated"
	again, _ := d.GetDoctor(context.Background(), "d1")
	if again.Name != "Adams" {
		t.Errorf("directory returned shared pointer")
	}

	if _, err := d.GetDoctor(context.Background(), "missing"); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.json")
	content := `[{"id":"d1","name":"Adams","specialization":"Ortho","department":"surgery"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	docs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Department != "surgery" {
		t.Fatalf("unexpected doctors: %+v", docs)
	}
}

func TestLoadFile_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.json")
	if err := os.WriteFile(path, []byte(`[{"name":"Nobody"}]`), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for entry without id")
	}
}

func TestDirectoryPG_GetDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := &directoryPG{q: mock}

	mock.ExpectQuery("SELECT (.+) FROM doctor WHERE id").WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialization", "department"}).
			AddRow("d1", "Adams", "Ortho", "surgery"))
	doc, err := repo.GetDoctor(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Department != "surgery" {
		t.Errorf("expected department surgery, got %q", doc.Department)
	}

	mock.ExpectQuery("SELECT (.+) FROM doctor WHERE id").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetDoctor(context.Background(), "nope"); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryPG_ListDoctors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := &directoryPG{q: mock}

	mock.ExpectQuery("SELECT (.+) FROM doctor ORDER BY name").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialization", "department"}).
			AddRow("d1", "Adams", "Ortho", "surgery").
			AddRow("d2", "Zhou", "Cardio", "medicine"))
	docs, err := repo.ListDoctors(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 doctors, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryPG_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := &directoryPG{q: mock}

	mock.ExpectExec("INSERT INTO doctor").WithArgs("d1", "Adams", "Ortho", "surgery").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO doctor").WithArgs("d2", "Zhou", "Cardio", "medicine").
		WillReturnError(errors.New("foreign key violation"))

	err = repo.upsert(context.Background(), []Doctor{
		{ID: "d1", Name: "Adams", Specialization: "Ortho", Department: "surgery"},
		{ID: "d2", Name: "Zhou", Specialization: "Cardio", Department: "medicine"},
	})
	if err == nil {
		t.Fatal("expected error from second upsert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
