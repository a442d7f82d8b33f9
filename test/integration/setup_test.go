//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/booking"
	"github.com/clinicdesk/clinicdesk/internal/domain/catalog"
	"github.com/clinicdesk/clinicdesk/internal/domain/identity"
	"github.com/clinicdesk/clinicdesk/internal/domain/lab"
	"github.com/clinicdesk/clinicdesk/internal/domain/pharmacy"
	"github.com/clinicdesk/clinicdesk/internal/domain/treatment"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// testDB holds the shared database for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

var globalDB *testDB

// TestMain uses TEST_DATABASE_URL when set and otherwise starts a throwaway
// Postgres container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	globalDB = &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: findMigrationsDir()}
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// newClinic creates a migrated clinic schema and drops it when the test ends.
func newClinic(t *testing.T, prefix string) string {
	t.Helper()
	ctx := context.Background()
	clinicID := fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.New().String()[:8], "-", ""))
	if err := db.CreateClinicSchema(ctx, globalDB.Pool, clinicID, globalDB.MigrationsDir); err != nil {
		t.Fatalf("create clinic schema %s: %v", clinicID, err)
	}
	t.Cleanup(func() {
		schema := db.SchemaName(clinicID)
		if _, err := globalDB.Pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return clinicID
}

// withClinicConn pins a connection to the clinic schema and hands it to fn on
// the context, as ClinicMiddleware does for requests.
func withClinicConn(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error {
	conn, err := globalDB.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", db.SchemaName(clinicID))); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	defer func() { _, _ = conn.Exec(context.Background(), "RESET search_path") }()

	ctx = context.WithValue(ctx, db.ClinicIDKey, clinicID)
	return fn(db.WithConn(ctx, conn))
}

// inClinic is withClinicConn that fails the test on error.
func inClinic(t *testing.T, clinicID string, fn func(ctx context.Context) error) {
	t.Helper()
	if err := withClinicConn(context.Background(), clinicID, fn); err != nil {
		t.Fatal(err)
	}
}

// app wires the real repositories and services the way the server does.
type app struct {
	Users     *identity.Service
	Booking   *booking.Service
	Treatment *treatment.Service
	Lab       *lab.Service
	Pharmacy  *pharmacy.Service
	Files     *blobstore.MemoryStore
}

func newApp() *app {
	pool := globalDB.Pool
	logger := zerolog.Nop()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	files := blobstore.NewMemoryStore("http://files.test")
	tx := db.NewTxRunner(pool)

	users := identity.NewService(identity.NewUserRepoPG(pool))
	appts := booking.NewAppointmentRepoPG(pool)
	doctors := catalog.NewResolver(catalog.NewDoctorRepoPG(pool))

	labSvc := lab.NewService(lab.NewRequestRepoPG(pool), appts, users, files, tx, metrics, logger)
	pharmacySvc := pharmacy.NewService(pharmacy.NewOrderRepoPG(pool), pharmacy.NewInventoryRepoPG(pool), metrics, logger)
	return &app{
		Users:     users,
		Booking:   booking.NewService(appts, doctors, catalog.NewServiceRepoPG(pool), users, metrics, logger),
		Treatment: treatment.NewService(treatment.NewPlanRepoPG(pool), appts, files, tx, labSvc, pharmacySvc, metrics, logger),
		Lab:       labSvc,
		Pharmacy:  pharmacySvc,
		Files:     files,
	}
}

// createUser inserts an account and returns its principal.
func createUser(t *testing.T, a *app, clinicID string, role auth.Role, name string) auth.Principal {
	t.Helper()
	u := &identity.User{
		Email: fmt.Sprintf("%s-%s@clinic.test", role, uuid.New().String()[:8]),
		Name:  name,
		Role:  role,
	}
	inClinic(t, clinicID, func(ctx context.Context) error {
		return a.Users.CreateUser(ctx, u)
	})
	return auth.Principal{UserID: u.ID, Role: role}
}

// createDoctor inserts a doctor profile for a doctor account.
func createDoctor(t *testing.T, clinicID string, doctorUser auth.Principal, fee float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	inClinic(t, clinicID, func(ctx context.Context) error {
		_, err := db.ConnFromContext(ctx).Exec(ctx,
			`INSERT INTO doctor (id, user_id, name, specialty, consultation_fee) VALUES ($1, $2, $3, $4, $5)`,
			id, doctorUser.UserID, "Dr. Integration", "General", fee)
		return err
	})
	return id
}
