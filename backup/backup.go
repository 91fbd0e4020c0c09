package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/fileio"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/robfig/cron/v3"
)

const (
	filePrefix = "patients-"
	fileSuffix = ".xlsx"
	timeLayout = "20060102-150405"
)

// Options controls where backups go and how many are kept.
type Options struct {
	Dir  string
	Keep int
}

// Run writes a full spreadsheet backup, costs included, and prunes old
// files down to opts.Keep. It returns the path written.
func Run(ctx context.Context, lister reconcile.PatientLister, opts Options, now time.Time) (string, error) {
	patients, err := lister.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("list patients: %w", err)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(opts.Dir, filePrefix+now.Format(timeLayout)+fileSuffix)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := fileio.WriteXLSX(f, patients, true); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}

	util.LogAuditEvent(util.AuditEvent{
		EventType: util.EventBackup,
		Actor:     "system",
		Message:   fmt.Sprintf("backup of %d patients written", len(patients)),
		Details:   map[string]interface{}{"path": path, "patients": len(patients)},
	})

	if opts.Keep > 0 {
		if _, err := Prune(opts.Dir, opts.Keep); err != nil {
			return path, fmt.Errorf("prune backups: %w", err)
		}
	}
	return path, nil
}

// Prune deletes all but the newest keep backup files in dir and returns the
// removed paths. Backup names sort chronologically.
func Prune(dir string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) <= keep {
		return nil, nil
	}
	sort.Strings(names)

	var removed []string
	for _, name := range names[:len(names)-keep] {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// Schedule registers the backup job on c using a standard five field cron
// spec. Failures are logged and the schedule keeps running.
func Schedule(c *cron.Cron, spec string, lister reconcile.PatientLister, opts Options) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := Run(ctx, lister, opts, time.Now()); err != nil {
			log := util.Logger()
			log.Error().Err(err).Str("dir", opts.Dir).Msg("scheduled backup failed")
		}
	})
}
