package probe

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// maxReportedErrors caps the error list in the cleanup result.
const maxReportedErrors = 10

// deniedRoots are directories cleanup never descends into, whatever the
// candidate roots resolve to.
var deniedRoots = map[string][]string{
	PlatformMacOS:   {"/", "/System", "/Library", "/Users", "/Applications", "/usr", "/etc", "/var/db"},
	PlatformLinux:   {"/", "/home", "/root", "/etc", "/usr", "/var/log", "/boot", "/proc", "/sys"},
	PlatformWindows: {`C:\`, `C:\Windows\System32`, `C:\Users`, `C:\Program Files`, `C:\Program Files (x86)`},
}

func cleanupProbe(cfg Config) *Probe {
	return &Probe{
		Name: "cleanup_temp_files",
		Description: "Delete stale files from the system temp directories. " +
			"CALL WHEN the disk is nearly full or the user asked for a cleanup; " +
			"set dry_run true first to preview what would go. " +
			"DO NOT CALL IF disk space is not the problem; this cannot fix connectivity. " +
			"OUTPUT MEANING: files_removed and bytes_freed summarize the deletion; " +
			"recently modified files and symlinks are always left alone.",
		Parameters: []models.ToolParameter{
			{Name: "dry_run", Type: models.ParamBoolean, Required: false, Default: false,
				Description: "When true, list candidates without deleting anything."},
		},
		Action: true,
		RunFunc: func(ctx context.Context, platform string, args map[string]any) *models.ProbeResult {
			dryRun, _ := args["dry_run"].(bool)
			return cleanupTempFiles(ctx, platform, cfg, dryRun)
		},
	}
}

func cleanupTempFiles(ctx context.Context, platform string, cfg Config, dryRun bool) *models.ProbeResult {
	minAge := cfg.TempFileMinAge
	if minAge <= 0 {
		minAge = time.Hour
	}
	cutoff := time.Now().Add(-minAge)

	var (
		removed  int
		skipped  int
		freed    int64
		errs     []string
		errTotal int
	)

	recordErr := func(path string, err error) {
		errTotal++
		if len(errs) < maxReportedErrors {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
		}
	}

	for _, root := range cleanupRoots(platform, cfg.TempFileRoots) {
		if rootDenied(platform, root) {
			skipped++
			continue
		}
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path != root {
					recordErr(path, err)
				}
				return nil
			}
			if d.IsDir() {
				if path != root && rootDenied(platform, path) {
					return filepath.SkipDir
				}
				return nil
			}
			// Symlinks are never followed or removed.
			if d.Type()&fs.ModeSymlink != 0 {
				skipped++
				return nil
			}
			info, err := d.Info()
			if err != nil {
				recordErr(path, err)
				return nil
			}
			if info.ModTime().After(cutoff) {
				skipped++
				return nil
			}
			if dryRun {
				removed++
				freed += info.Size()
				return nil
			}
			if err := os.Remove(path); err != nil {
				recordErr(path, err)
				return nil
			}
			removed++
			freed += info.Size()
			return nil
		})
		if walkErr != nil && ctx.Err() != nil {
			break
		}
	}

	data := map[string]any{
		"files_removed": removed,
		"files_skipped": skipped,
		"bytes_freed":   freed,
		"dry_run":       dryRun,
		"error_count":   errTotal,
	}
	if len(errs) > 0 {
		data["errors"] = errs
	}

	var suggestions []string
	if dryRun && removed > 0 {
		suggestions = append(suggestions,
			fmt.Sprintf("Rerun with dry_run false to actually delete the %d listed files.", removed))
	}

	return &models.ProbeResult{
		Success:     errTotal == 0 || removed > 0,
		Data:        data,
		Suggestions: suggestions,
	}
}

// cleanupRoots returns the candidate temp directories: the explicit
// override when configured, otherwise the platform defaults.
func cleanupRoots(platform string, override []string) []string {
	seen := map[string]bool{}
	var roots []string
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if dir == "" || dir == "." || seen[dir] {
			return
		}
		seen[dir] = true
		roots = append(roots, dir)
	}

	if len(override) > 0 {
		for _, dir := range override {
			add(dir)
		}
		return roots
	}

	add(os.TempDir())
	switch platform {
	case PlatformLinux:
		add("/tmp")
		add("/var/tmp")
	case PlatformMacOS:
		add("/tmp")
	case PlatformWindows:
		if windir := os.Getenv("windir"); windir != "" {
			add(filepath.Join(windir, "Temp"))
		}
	}
	return roots
}

func rootDenied(platform string, dir string) bool {
	cleaned := filepath.Clean(dir)
	for _, denied := range deniedRoots[platform] {
		if strings.EqualFold(cleaned, filepath.Clean(denied)) {
			return true
		}
	}
	return false
}
