package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// StoreWritableChecker verifies the object store's blob directory accepts
// writes by creating and removing a probe file.
type StoreWritableChecker struct {
	Dir string
}

// NewStoreWritableChecker creates a checker rooted at dir.
func NewStoreWritableChecker(dir string) *StoreWritableChecker {
	return &StoreWritableChecker{Dir: dir}
}

// Check implements Checker.
func (c *StoreWritableChecker) Check(ctx context.Context) Result {
	start := time.Now()
	probe := filepath.Join(c.Dir, ".health-probe")
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("mkdir failed: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("write failed: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	_ = os.Remove(probe)
	return Result{Healthy: true, Message: "object store directory writable", CheckedAt: start, Duration: time.Since(start)}
}

// Type implements Checker.
func (c *StoreWritableChecker) Type() CheckType {
	return CheckTypeExec
}

// MetaDBOpenableChecker verifies the bbolt metadata index can be opened.
type MetaDBOpenableChecker struct {
	Path string
}

// NewMetaDBOpenableChecker creates a checker for the given database path.
func NewMetaDBOpenableChecker(path string) *MetaDBOpenableChecker {
	return &MetaDBOpenableChecker{Path: path}
}

// Check implements Checker.
func (c *MetaDBOpenableChecker) Check(ctx context.Context) Result {
	start := time.Now()
	db, err := bolt.Open(c.Path, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("open failed: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	_ = db.Close()
	return Result{Healthy: true, Message: "metadata index openable", CheckedAt: start, Duration: time.Since(start)}
}

// Type implements Checker.
func (c *MetaDBOpenableChecker) Type() CheckType {
	return CheckTypeExec
}

// ModelLoadedChecker reports whether the AML reconstruction model is loaded.
// Absence is reported, never fatal: the AML scanner degrades to skip mode.
type ModelLoadedChecker struct {
	Loaded func() bool
}

// NewModelLoadedChecker wraps a loaded-predicate in a Checker.
func NewModelLoadedChecker(loaded func() bool) *ModelLoadedChecker {
	return &ModelLoadedChecker{Loaded: loaded}
}

// Check implements Checker.
func (c *ModelLoadedChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if c.Loaded() {
		return Result{Healthy: true, Message: "aml model loaded", CheckedAt: start, Duration: time.Since(start)}
	}
	return Result{Healthy: true, Message: "aml model not loaded, scanner running in skip mode", CheckedAt: start, Duration: time.Since(start)}
}

// Type implements Checker.
func (c *ModelLoadedChecker) Type() CheckType {
	return CheckTypeExec
}
