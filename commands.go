package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/A-tamer/hospital-management-system/backup"
	"github.com/A-tamer/hospital-management-system/config"
	"github.com/A-tamer/hospital-management-system/endpoint"
	"github.com/A-tamer/hospital-management-system/fileio"
	"github.com/A-tamer/hospital-management-system/middleware"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg
	log := util.Logger()

	if _, err := config.ConnectRedis(cfg); err != nil {
		// rate limiting is skipped without redis
		log.Warn().Err(err).Msg("redis unavailable, import rate limiting disabled")
	}

	opts, err := importOptions(cfg, "")
	if err != nil {
		return err
	}

	scheduler := cron.New()
	if cfg.BackupSchedule != "" {
		if _, err := backup.Schedule(scheduler, cfg.BackupSchedule, a.patients, backup.Options{Dir: cfg.BackupDir, Keep: cfg.BackupKeep}); err != nil {
			return fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", cfg.BackupSchedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", cfg.BackupSchedule).Str("dir", cfg.BackupDir).Msg("backup job scheduled")
	}

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)
	router := endpoint.NewRouter(endpoint.RouterOptions{
		AppName: cfg.AppName,
		Backend: middleware.Backend{
			Patients:      a.patients,
			Accounts:      a.accounts,
			ImportOptions: opts,
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.AppPort),
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.StoreBackend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func importCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import patients from a .json, .csv or .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			opts, err := importOptions(a.cfg, strategy)
			if err != nil {
				return err
			}
			result, err := importFile(cmd.Context(), a.patients, args[0], opts...)
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "code strategy for rows without a code: batch|live (default from IMPORT_CODE_STRATEGY)")
	return cmd
}

// importFile reads path and imports every row into s.
func importFile(ctx context.Context, s reconcile.ImportStore, path string, opts ...reconcile.ImporterOption) (reconcile.ImportResult, error) {
	format, err := fileio.DetectFormat(path)
	if err != nil {
		return reconcile.ImportResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return reconcile.ImportResult{}, err
	}
	defer f.Close()

	rows, shape, err := fileio.Read(f, format)
	if err != nil {
		return reconcile.ImportResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return reconcile.NewImporter(s, opts...).ImportBatch(ctx, rows, shape), nil
}

func printImportResult(w io.Writer, result reconcile.ImportResult) {
	fmt.Fprintf(w, "imported %d patients\n", result.SuccessCount)
	for _, msg := range result.Errors {
		fmt.Fprintln(w, msg)
	}
}

func exportCmd() *cobra.Command {
	var withCosts bool
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export every patient; the format follows the file extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := exportFile(cmd.Context(), a.patients, args[0], time.Now(), withCosts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d patients to %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&withCosts, "costs", true, "include surgery cost columns")
	return cmd
}

// exportFile writes every stored patient to path and returns the count.
func exportFile(ctx context.Context, lister reconcile.PatientLister, path string, now time.Time, financial bool) (int, error) {
	format, err := fileio.DetectFormat(path)
	if err != nil {
		return 0, err
	}
	patients, err := lister.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	if err := fileio.Write(&buf, format, patients, now, financial); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return len(patients), nil
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a spreadsheet backup to BACKUP_DIR and prune old ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			path, err := backup.Run(cmd.Context(), a.patients, backup.Options{Dir: a.cfg.BackupDir, Keep: a.cfg.BackupKeep}, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func sweepCodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-codes",
		Short: "Report patient codes shared by more than one record",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := sweepCodes(cmd.Context(), a.patients, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d duplicated codes found", n)
			}
			return nil
		},
	}
}

// sweepCodes prints every duplicated code with the ids holding it and
// returns how many codes are duplicated.
func sweepCodes(ctx context.Context, lister reconcile.PatientLister, w io.Writer) (int, error) {
	patients, err := lister.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	dups := reconcile.FindDuplicateCodes(patients)
	codes := make([]string, 0, len(dups))
	for code := range dups {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "%s: %v\n", code, dups[code])
	}
	if len(codes) == 0 {
		fmt.Fprintln(w, "no duplicated codes")
	}
	return len(codes), nil
}
