package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ekuzmin/pdffig/internal/config"
	"github.com/ekuzmin/pdffig/internal/export"
	"github.com/ekuzmin/pdffig/internal/locator"
	"github.com/ekuzmin/pdffig/internal/oracle"
	"github.com/ekuzmin/pdffig/internal/plan"
	"github.com/ekuzmin/pdffig/internal/source"
	"github.com/ekuzmin/pdffig/internal/system"
)

// job is one figure or table to extract.
type job struct {
	name          string
	output        string
	includeExtras bool
}

func main() {
	figurePtr := flag.String("figure", "", "Region to extract, e.g. \"Figure 3\" or \"Table 1\" or \"Figure 2(b)\"")
	batchPtr := flag.String("batch", "", "Comma-separated list of regions to extract in one run")
	planPtr := flag.String("plan", "", "Path to a YAML extraction plan (overrides -figure and -batch)")
	emitPlanPtr := flag.String("emit-plan", "", "Write the -figure/-batch targets as a YAML plan to this path and exit")
	inputPtr := flag.String("input", "", "Path to the PDF or page image(s) (default: newest PDF in input/pdf/)")
	outputPtr := flag.String("output", "", "Output PNG path (single-figure runs only; default: auto-named)")
	outputDirPtr := flag.String("output-dir", "", "Directory for auto-named outputs (default: extracted_figures/ next to the input)")
	dpiPtr := flag.Int("dpi", config.DefaultDPI, "Render DPI for PDF pages")
	noExtrasPtr := flag.Bool("no-extras", false, "Crop the main content only, without caption or legend")
	maxRoundsPtr := flag.Int("max-rounds", config.DefaultMaxRounds, "Oracle round budget per page, grounding included")
	thresholdPtr := flag.Int("quality-threshold", config.DefaultQualityThreshold, "Quality score (1-10) that stops refinement early")
	startPagePtr := flag.Int("start-page", 1, "First page to search (1-based)")
	maxPagesPtr := flag.Int("max-pages", 0, "Number of pages to search (0 = to the end)")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Concurrent extractions in batch mode")
	statsPtr := flag.Bool("stats", false, "Print a run report with timing and resource usage")
	verbosePtr := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbosePtr {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on the environment")
	}

	system.InitResourceLimits(log)

	cfg := config.Config{
		InputPath:        *inputPtr,
		OutputPath:       *outputPtr,
		OutputDir:        *outputDirPtr,
		DPI:              *dpiPtr,
		IncludeExtras:    !*noExtrasPtr,
		MaxRounds:        *maxRoundsPtr,
		QualityThreshold: *thresholdPtr,
		StartPage:        *startPagePtr - 1,
		MaxPages:         *maxPagesPtr,
		Workers:          *workersPtr,
		ShowStats:        *statsPtr,
		Oracle:           config.OracleFromEnv(),
	}

	jobs, planInput, err := buildJobs(*figurePtr, *batchPtr, *planPtr, cfg.OutputPath, cfg.IncludeExtras)
	if err != nil {
		log.Fatal(err)
	}
	if planInput != "" && cfg.InputPath == "" {
		cfg.InputPath = planInput
	}

	if *emitPlanPtr != "" {
		p := templatePlan(jobs, cfg.InputPath)
		if err := plan.Write(p, *emitPlanPtr); err != nil {
			log.Fatalf("Writing plan: %v", err)
		}
		log.WithFields(logrus.Fields{
			"plan":    *emitPlanPtr,
			"figures": len(p.Figures),
		}).Info("Plan written")
		return
	}

	if cfg.InputPath == "" {
		latest, err := system.FindLatestPDF(filepath.Join("input", "pdf"))
		if err != nil {
			log.Fatalf("No input given and no PDF found: %v", err)
		}
		cfg.InputPath = latest
		log.WithField("input", latest).Info("Using newest PDF from input/pdf")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if len(jobs) > 1 && cfg.OutputPath != "" {
		log.Fatal("-output applies to single-figure runs only; use -output-dir or a plan")
	}

	src, err := openSource(cfg.InputPath)
	if err != nil {
		log.Fatalf("Opening %s: %v", cfg.InputPath, err)
	}
	defer src.Close()

	client, err := oracle.NewVisionClient(cfg.Oracle, log)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	stats := runJobs(context.Background(), jobs, src, client, cfg, log)
	stats.Elapsed = time.Since(start)

	if stats.Failed > 0 {
		log.WithFields(logrus.Fields{
			"extracted": stats.Extracted,
			"failed":    stats.Failed,
		}).Warn("Run finished with failures")
	} else {
		log.WithField("extracted", stats.Extracted).Info("Run finished")
	}

	if cfg.ShowStats {
		fmt.Println(stats.Report())
	}
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// buildJobs resolves the extraction targets from -figure, -batch or -plan.
// A plan wins over the flags; its input path is returned alongside.
func buildJobs(figure, batch, planPath, output string, includeExtras bool) ([]job, string, error) {
	if planPath != "" {
		p, err := plan.Read(planPath)
		if err != nil {
			return nil, "", err
		}
		jobs := make([]job, 0, len(p.Figures))
		for _, f := range p.Figures {
			j := job{name: f.Name, output: f.Output, includeExtras: includeExtras}
			if f.IncludeExtras != nil {
				j.includeExtras = *f.IncludeExtras
			}
			jobs = append(jobs, j)
		}
		return jobs, p.Input, nil
	}

	if batch != "" {
		var jobs []job
		for _, name := range strings.Split(batch, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			jobs = append(jobs, job{name: name, includeExtras: includeExtras})
		}
		if len(jobs) == 0 {
			return nil, "", fmt.Errorf("-batch lists no regions")
		}
		return jobs, "", nil
	}

	if figure == "" {
		return nil, "", fmt.Errorf("nothing to extract: pass -figure, -batch or -plan")
	}
	return []job{{name: figure, output: output, includeExtras: includeExtras}}, "", nil
}

// templatePlan turns resolved jobs back into a plan file, so a one-off
// -batch invocation can be saved and re-run with -plan.
func templatePlan(jobs []job, input string) *plan.Plan {
	p := &plan.Plan{
		Version: "1.0",
		Input:   input,
		Figures: make([]plan.Figure, 0, len(jobs)),
	}
	for _, j := range jobs {
		f := plan.Figure{Name: j.name, Output: j.output}
		if !j.includeExtras {
			noExtras := false
			f.IncludeExtras = &noExtras
		}
		p.Figures = append(p.Figures, f)
	}
	return p
}

// openSource picks the page source by input type: PDFs go through go-fitz,
// anything else is treated as pre-rasterized page scans.
func openSource(path string) (source.Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return source.NewFitzPDFSource(path)
	}
	return source.NewImagePageSource(path)
}

// runJobs executes every extraction, fanning out across workers in batch
// mode. Each job runs its own page search against the shared source; a
// failed job never cancels its siblings.
func runJobs(ctx context.Context, jobs []job, src source.Source, client oracle.Oracle, cfg config.Config, log *logrus.Logger) system.RunStats {
	var mu sync.Mutex
	var stats system.RunStats

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			err := runOne(ctx, j, src, client, cfg, log, &mu, &stats)
			if err != nil {
				log.WithError(err).WithField("target", j.name).Error("Extraction failed")
				mu.Lock()
				stats.Failed++
				mu.Unlock()
			}
			return nil
		})
	}

	g.Wait()
	return stats
}

func runOne(ctx context.Context, j job, src source.Source, client oracle.Oracle, cfg config.Config, log *logrus.Logger, mu *sync.Mutex, stats *system.RunStats) error {
	q := locator.NewRegionQuery(j.name, j.includeExtras)
	loop := locator.NewRefineLoop(client, cfg.MaxRounds, cfg.QualityThreshold, cfg.Oracle.MaxImageEdge, log)
	search := locator.NewPageSearch(src, loop, cfg.DPI, cfg.StartPage, cfg.MaxPages, log)

	match, ok := search.Run(ctx, q)
	if !ok {
		return fmt.Errorf("%q not found in the searched pages", j.name)
	}

	mu.Lock()
	stats.OracleCalls += match.Rounds
	mu.Unlock()

	padding := export.DefaultPadding
	if q.IsSubregion {
		padding = export.SubregionPadding
	}

	cropped := export.Crop(match.Image, match.Box, padding, log)
	outPath := export.OutputPath(cfg.InputPath, j.name, j.output, cfg.OutputDir)
	if err := export.SavePNG(cropped, outPath); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"target": j.name,
		"page":   match.PageIndex + 1,
		"score":  match.Quality,
		"output": outPath,
	}).Info("Saved extraction")

	mu.Lock()
	stats.Extracted++
	mu.Unlock()
	return nil
}
