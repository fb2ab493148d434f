// Package storage reports how much disk a store directory and its ledger occupy.
package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Usage breaks down the bytes held by a store directory.
type Usage struct {
	Indices int64 `json:"indices_bytes"`
	Ledger  int64 `json:"ledger_bytes"`
	Other   int64 `json:"other_bytes"`
	Total   int64 `json:"total_bytes"`
}

// StoreUsage walks dir and attributes each file to the index files (by indexExt), the
// ledger (ledgerPath and its SQLite -wal/-shm companions) or other. A ledger outside
// dir is counted too. A missing dir yields zero usage.
func StoreUsage(dir, ledgerPath, indexExt string) (Usage, error) {
	var u Usage
	ledgerClean := filepath.Clean(ledgerPath)
	isLedger := func(path string) bool {
		return ledgerPath != "" && (path == ledgerClean ||
			path == ledgerClean+"-wal" || path == ledgerClean+"-shm")
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		switch {
		case isLedger(filepath.Clean(path)):
			u.Ledger += info.Size()
		case strings.HasSuffix(path, indexExt):
			u.Indices += info.Size()
		default:
			u.Other += info.Size()
		}
		return nil
	})
	if err != nil {
		return Usage{}, err
	}
	if ledgerPath != "" && !inDir(dir, ledgerClean) {
		n, err := DiskUsageBytes(ledgerClean, ledgerClean+"-wal", ledgerClean+"-shm")
		if err != nil {
			return Usage{}, err
		}
		u.Ledger += n
	}
	u.Total = u.Indices + u.Ledger + u.Other
	return u, nil
}

// DiskUsageBytes returns the total size of the given files and directories.
// Missing paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	return total, nil
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
