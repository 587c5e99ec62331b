package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}

	if code != 0 {
		log.Fatalf("tests failed with exit code %d", code)
	}
}

func newTestProduct(t *testing.T, name string, price string) *domain.Product {
	t.Helper()

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: "School " + name,
		Price:       decimal.RequireFromString(price),
		Brand:       "Trutex",
		Condition:   domain.ConditionNew,
		Gender:      domain.GenderUnisex,
		Category:    "tops",
		Images:      []string{"/uploads/" + uuid.NewString() + ".jpg"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}
