package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/A-tamer/hospital-management-system/config"
	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/store"
	"github.com/A-tamer/hospital-management-system/util"
)

// app holds the stores selected by STORE_BACKEND.
type app struct {
	cfg      *config.Config
	patients reconcile.PatientStore
	accounts reconcile.AccountStore
	close    func() error
}

// bootstrap loads configuration, sets up logging and opens the store.
func bootstrap() (*app, error) {
	cfg := config.LoadConfig()
	util.InitLogger(cfg.AppEnv, cfg.LogLevel)
	util.InitAccountCache(cfg.AccountCacheTTL)

	switch cfg.StoreBackend {
	case config.BackendLevelDB:
		doc, err := store.OpenDocStore(cfg.LevelDBPath)
		if err != nil {
			return nil, fmt.Errorf("open leveldb at %s: %w", cfg.LevelDBPath, err)
		}
		a := &app{cfg: cfg, patients: doc, accounts: doc, close: doc.Close}
		if err := seedAdmin(context.Background(), doc, cfg.AdminEmail); err != nil {
			_ = doc.Close()
			return nil, err
		}
		return a, nil

	case config.BackendSQL, "":
		db, err := config.ConnectDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
		}
		sqlStore := store.NewSQLStore(db)
		if err := sqlStore.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if err := model.SeedAdminAccount(db, cfg.AdminEmail); err != nil {
			return nil, err
		}
		util.SetAuditLoggerDB(db)
		closer := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return &app{cfg: cfg, patients: sqlStore, accounts: sqlStore, close: closer}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// seedAdmin creates the bootstrap admin in stores without SQL access.
func seedAdmin(ctx context.Context, accounts reconcile.AccountStore, email string) error {
	if email == "" {
		return nil
	}
	_, err := accounts.GetAccountByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, reconcile.ErrNotFound) {
		return err
	}
	return accounts.SaveAccount(ctx, &model.UserAccount{
		Email:            email,
		Name:             "Administrator",
		Role:             model.RoleAdmin,
		CanViewFinancial: true,
	})
}

// importOptions turns configuration into importer options.
func importOptions(cfg *config.Config, strategy string) ([]reconcile.ImporterOption, error) {
	if strategy == "" {
		strategy = cfg.ImportCodeStrategy
	}
	s, err := reconcile.ParseCodeStrategy(strategy)
	if err != nil {
		return nil, err
	}
	return []reconcile.ImporterOption{reconcile.WithCodeStrategy(s)}, nil
}
