// Command seed-db loads a product catalog into the database and provisions an
// administrator account. The catalog file is JSON, optionally gzip-compressed
// (a .gz suffix is decompressed on the fly).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/repository"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			image_urls = EXCLUDED.image_urls,
			updated_at = now()`

	upsertAdminSQL = `INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role`
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURLs   []string        `json:"imageUrls"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		adminEmail   string
		adminPass    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file (.gz accepted)")
	flag.StringVar(&adminEmail, "admin-email", "", "administrator email to provision (or SHOP_SEED_ADMIN_EMAIL env)")
	flag.StringVar(&adminPass, "admin-password", "", "administrator password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminEmail == "" {
		adminEmail = os.Getenv("SHOP_SEED_ADMIN_EMAIL")
	}
	if adminPass == "" {
		adminPass = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminEmail, adminPass); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminEmail, adminPass string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if adminEmail != "" {
		if adminPass == "" {
			return errors.New("admin password is required when provisioning an admin")
		}
		if err := seedAdmin(ctx, pool, adminEmail, adminPass); err != nil {
			return errors.Wrap(err, "seed admin")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "gzip reader for %s", path)
		}
		defer gz.Close()
		r = gz
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return errors.Wrap(err, "decode products")
	}

	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		urls, err := json.Marshal(p.ImageURLs)
		if err != nil {
			return errors.Wrapf(err, "marshal image urls for %s", p.Name)
		}
		_, err = pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Stock, urls,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Name)
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, upsertAdminSQL,
		uuid.New().String(), "Administrator", strings.ToLower(email), hash, user.RoleAdmin,
	)
	if err != nil {
		return errors.Wrap(err, "upsert admin user")
	}

	slog.Info("admin provisioned", slog.String("email", email))
	return nil
}
