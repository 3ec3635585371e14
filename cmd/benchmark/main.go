// Benchmark tool for the physrisk assessment engine.
//
// Usage:
//
//	go run cmd/benchmark/main.go -sites 100 -workers 8
//
// This tool:
//  1. Generates a synthetic multi-site portfolio with deterministic
//     daily climate series
//  2. Runs the full assessment pipeline (extraction, bin probabilities,
//     vulnerability scaling, AAL) for every site
//  3. Reports throughput, latency percentiles and failure counts
//
// Everything runs in-process against a static climate provider, so the
// numbers measure the computation core without warehouse I/O.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-climate/physrisk/internal/cache"
	"github.com/open-climate/physrisk/internal/climate"
	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/hazard"
	"github.com/open-climate/physrisk/internal/intensity"
	"github.com/open-climate/physrisk/internal/runner"
	"github.com/open-climate/physrisk/internal/vuln"
)

type metrics struct {
	completed int64
	partial   int64
	failed    int64
	cells     int64
	badCells  int64
}

func main() {
	sites := flag.Int("sites", 100, "Number of synthetic sites")
	workers := flag.Int("workers", 8, "Concurrent site assessments")
	cellWorkers := flag.Int("cell-workers", 4, "Parallel cells per risk type")
	scenarios := flag.Int("scenarios", 2, "Scenarios per site (max 3)")
	periods := flag.Int("periods", 2, "Periods per site")
	seed := flag.Int64("seed", 42, "Random seed for synthetic data")
	useCache := flag.Bool("cache", false, "Enable the in-memory cell cache")
	verbose := flag.Bool("verbose", false, "Print each site result")
	flag.Parse()

	fmt.Println("physrisk benchmark - synthetic portfolio assessment")
	fmt.Printf("\nSites:        %d\n", *sites)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Cell workers: %d\n", *cellWorkers)
	fmt.Printf("Scenarios:    %d\n", *scenarios)
	fmt.Printf("Periods:      %d\n", *periods)
	fmt.Printf("Cache:        %v\n", *useCache)
	fmt.Println()

	rng := rand.New(rand.NewSource(*seed))
	provider := syntheticProvider(rng)

	hazards, err := hazard.NewRegistry(hazard.DefaultConfigs())
	if err != nil {
		fmt.Printf("ERROR: failed to build hazard registry: %v\n", err)
		os.Exit(1)
	}

	opts := []runner.Option{
		runner.WithMaxWorkers(*cellWorkers),
		runner.WithConvention(vuln.WideConvention()),
	}
	if *useCache {
		cellCache, err := cache.New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100000})
		if err != nil {
			fmt.Printf("ERROR: failed to build cache: %v\n", err)
			os.Exit(1)
		}
		defer cellCache.Close()
		opts = append(opts, runner.WithCache(cellCache, time.Hour))
	}
	run := runner.New(intensity.DefaultRegistry(), hazards, provider, opts...)

	allScenarios := []domain.Scenario{
		domain.ScenarioSSP126,
		domain.ScenarioSSP245,
		domain.ScenarioSSP585,
	}
	if *scenarios < 1 {
		*scenarios = 1
	}
	if *scenarios > len(allScenarios) {
		*scenarios = len(allScenarios)
	}

	reqPeriods := make([]domain.YearRange, 0, *periods)
	for i := 0; i < *periods; i++ {
		start := 2030 + i*10
		reqPeriods = append(reqPeriods, domain.YearRange{Start: start, End: start + 9})
	}

	portfolio := make([]*domain.Site, *sites)
	for i := range portfolio {
		portfolio[i] = syntheticSite(rng, i)
	}

	fmt.Printf("Running %d assessments...\n", *sites)
	start := time.Now()

	var m metrics
	latencies := make([]time.Duration, *sites)

	work := make(chan int, *workers)
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				site := portfolio[i]
				siteStart := time.Now()

				a, err := run.RunParallel(context.Background(), &runner.Request{
					TenantID:       "benchmark",
					Site:           site,
					Scenarios:      allScenarios[:*scenarios],
					Periods:        reqPeriods,
					BaselinePeriod: domain.YearRange{Start: 1995, End: 2014},
				})
				latencies[i] = time.Since(siteStart)

				if err != nil {
					atomic.AddInt64(&m.failed, 1)
					if *verbose {
						fmt.Printf("ERROR: %s -> %v\n", site.ID, err)
					}
					continue
				}

				total, bad := a.CountCells()
				atomic.AddInt64(&m.cells, int64(total))
				atomic.AddInt64(&m.badCells, int64(bad))

				switch a.Status {
				case domain.AssessmentComplete:
					atomic.AddInt64(&m.completed, 1)
				case domain.AssessmentPartial:
					atomic.AddInt64(&m.partial, 1)
				default:
					atomic.AddInt64(&m.failed, 1)
				}

				if *verbose {
					fmt.Printf("%-12s | status=%-8s cells=%3d failed=%d duration=%s\n",
						site.ID, a.Status, total, bad, latencies[i].Round(time.Millisecond))
				}
			}
		}()
	}

	for i := 0; i < *sites; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	printResults(&m, latencies, time.Since(start))
}

// syntheticProvider builds one deterministic set of daily/monthly series
// covering every variable the extractors consume, plus a cyclone track
// set. The same series is served for every site.
func syntheticProvider(rng *rand.Rand) *climate.StaticProvider {
	series := make(map[domain.Variable][]domain.RawSample)

	daily := func(base, amplitude, noise float64) []domain.RawSample {
		var out []domain.RawSample
		for year := 1995; year <= 2059; year++ {
			for month := 1; month <= 12; month++ {
				for day := 1; day <= 28; day++ {
					seasonal := amplitude * seasonFactor(month)
					value := base + seasonal + rng.NormFloat64()*noise
					out = append(out, domain.RawSample{Year: year, Month: month, Day: day, Value: value})
				}
			}
		}
		return out
	}
	monthly := func(base, amplitude, noise float64) []domain.RawSample {
		var out []domain.RawSample
		for year := 1995; year <= 2059; year++ {
			for month := 1; month <= 12; month++ {
				value := base + amplitude*seasonFactor(month) + rng.NormFloat64()*noise
				if value < 0 {
					value = 0
				}
				out = append(out, domain.RawSample{Year: year, Month: month, Value: value})
			}
		}
		return out
	}
	yearly := func(base, trend, noise float64) []domain.RawSample {
		var out []domain.RawSample
		for year := 1995; year <= 2059; year++ {
			value := base + trend*float64(year-1995) + rng.NormFloat64()*noise
			out = append(out, domain.RawSample{Year: year, Value: value})
		}
		return out
	}

	series[domain.VarTempMax] = daily(18, 12, 3)
	series[domain.VarTempMin] = daily(8, 10, 3)
	series[domain.VarTempMean] = daily(13, 11, 2)
	series[domain.VarHumidity] = daily(65, -15, 8)
	series[domain.VarWindSpeed] = daily(5, 1, 2)
	series[domain.VarSeaLevel] = yearly(0.0, 0.004, 0.01)
	series[domain.VarRunoff] = monthly(40, 15, 10)
	series[domain.VarWaterDemand] = monthly(25, 5, 3)

	// Daily precipitation: mostly dry days with occasional heavy rain
	var pr []domain.RawSample
	for year := 1995; year <= 2059; year++ {
		for month := 1; month <= 12; month++ {
			for day := 1; day <= 28; day++ {
				value := 0.0
				if rng.Float64() < 0.3 {
					value = rng.ExpFloat64() * 12
				}
				pr = append(pr, domain.RawSample{Year: year, Month: month, Day: day, Value: value})
			}
		}
	}
	series[domain.VarPrecipitation] = pr

	// A handful of storms per decade passing near the reference site
	var tracks []domain.TrackPoint
	for year := 2030; year <= 2059; year++ {
		storms := rng.Intn(3)
		for s := 0; s < storms; s++ {
			tracks = append(tracks, domain.TrackPoint{
				StormID:       fmt.Sprintf("storm-%d-%d", year, s),
				Year:          year,
				Latitude:      35.0 + rng.Float64()*2 - 1,
				Longitude:     139.0 + rng.Float64()*2 - 1,
				MaxWindKt:     40 + rng.Float64()*80,
				RadiusMajorKm: 120 + rng.Float64()*80,
				RadiusMinorKm: 50 + rng.Float64()*30,
				BearingDeg:    rng.Float64() * 360,
			})
		}
	}

	return &climate.StaticProvider{SeriesData: series, Tracks: tracks}
}

// seasonFactor peaks in July and bottoms out in January.
func seasonFactor(month int) float64 {
	switch {
	case month >= 6 && month <= 8:
		return 1.0
	case month == 5 || month == 9:
		return 0.6
	case month == 4 || month == 10:
		return 0.2
	case month == 3 || month == 11:
		return -0.4
	default:
		return -1.0
	}
}

func syntheticSite(rng *rand.Rand, i int) *domain.Site {
	assetValue := 1e6 + rng.Float64()*9e6
	site := &domain.Site{
		ID:                    fmt.Sprintf("site-%04d", i),
		TenantID:              "benchmark",
		Name:                  fmt.Sprintf("Synthetic Site %d", i),
		Latitude:              35.0 + rng.Float64()*0.5,
		Longitude:             139.0 + rng.Float64()*0.5,
		AssetValue:            &assetValue,
		InsuranceRate:         rng.Float64() * 0.5,
		VulnerabilityScaleMax: 100,
		Vulnerability:         make(map[domain.RiskType]float64),
	}
	// Roughly half the sites carry vulnerability scores
	if i%2 == 0 {
		for _, rt := range domain.AllRiskTypes() {
			site.Vulnerability[rt] = rng.Float64() * 100
		}
	}
	return site
}

func printResults(m *metrics, latencies []time.Duration, duration time.Duration) {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(p * float64(len(latencies)-1))
		return latencies[idx]
	}

	total := m.completed + m.partial + m.failed

	fmt.Println("\nBENCHMARK RESULTS")
	fmt.Printf("\n  Assessments:   %d\n", total)
	fmt.Printf("  Complete:      %d\n", m.completed)
	fmt.Printf("  Partial:       %d\n", m.partial)
	fmt.Printf("  Failed:        %d\n", m.failed)
	fmt.Printf("  Cells:         %d (%d failed)\n", m.cells, m.badCells)

	fmt.Printf("\n  Total duration: %v\n", duration.Round(time.Millisecond))
	if total > 0 {
		fmt.Printf("  Throughput:     %.2f assessments/sec\n", float64(total)/duration.Seconds())
		fmt.Printf("  Cell rate:      %.0f cells/sec\n", float64(m.cells)/duration.Seconds())
	}
	fmt.Printf("\n  Latency p50:    %v\n", pct(0.50).Round(time.Millisecond))
	fmt.Printf("  Latency p90:    %v\n", pct(0.90).Round(time.Millisecond))
	fmt.Printf("  Latency p99:    %v\n", pct(0.99).Round(time.Millisecond))
	fmt.Println()
}
