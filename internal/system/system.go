// Package system holds process-level helpers: resource limits, default
// input discovery and run statistics.
package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

// InitResourceLimits raises the open-file limit; page rendering and batch
// runs open many short-lived files.
func InitResourceLimits(log *logrus.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.WithError(err).Warn("Could not query open-file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.WithError(err).Warn("Could not raise open-file limit")
	} else {
		log.WithField("limit", rLimit.Cur).Debug("Open-file limit raised")
	}
}

// FindLatestPDF returns the most recently modified PDF in dir.
func FindLatestPDF(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".pdf") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no PDF files found in %s", dir)
	}
	return latestFile, nil
}

// RunStats summarizes one run for the -stats report.
type RunStats struct {
	Elapsed     time.Duration
	OracleCalls int
	Extracted   int
	Failed      int
}

// Report renders the run statistics together with current process memory
// and CPU usage.
func (s RunStats) Report() string {
	var b strings.Builder
	b.WriteString("--- [RUN REPORT] ---\n")
	fmt.Fprintf(&b, "Elapsed: %.2fs\n", s.Elapsed.Seconds())
	fmt.Fprintf(&b, "Oracle rounds: %d\n", s.OracleCalls)
	fmt.Fprintf(&b, "Extracted: %d | Failed: %d\n", s.Extracted, s.Failed)

	if rss, cpu, err := processUsage(); err == nil {
		fmt.Fprintf(&b, "Memory (RSS): %.1f MB | CPU: %.1f%%\n", rss, cpu)
	}

	b.WriteString("--------------------")
	return b.String()
}

func processUsage() (rssMB float64, cpuPercent float64, err error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0, err
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}

	return float64(mem.RSS) / (1024 * 1024), cpu, nil
}
