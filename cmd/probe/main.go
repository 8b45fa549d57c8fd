// Command probe drives one headless dashboard session against a prediction
// backend and checks each stage of the flow: station inventory, model
// evaluation, prediction and history. It prints a PASS/FAIL report to stderr
// and the final session view as JSON to stdout.
//
// Usage:
//
//	go run ./cmd/probe -backend http://localhost:8000 -station "Sao Paulo"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/flood-risk-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/flood-risk-dashboard/internal/dashboard"
	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

type options struct {
	backendURL string
	station    string
	timeout    time.Duration
	logLevel   string
}

// phase tracks pass/fail for a probe phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	var opts options
	flag.StringVar(&opts.backendURL, "backend", "http://localhost:8000", "prediction backend base URL")
	flag.StringVar(&opts.station, "station", "", "station name to select (default: first station with coordinates)")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall probe timeout")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	os.Exit(run(ctx, opts, os.Stdout, os.Stderr))
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	logger := observability.NewLoggerTo(stderr, opts.logLevel, "text")
	// Nothing is exported from a probe run, so the metrics stay unregistered.
	metrics := observability.NewMetricsForTesting()
	client := backend.NewClient(opts.backendURL, backend.Options{
		Timeout:     opts.timeout,
		MaxFailures: 1000,
		OpenTimeout: time.Second,
	}, metrics, logger)

	view := dashboard.NewViewState("probe", dashboard.Deps{
		Backend:      client,
		Metrics:      metrics,
		Logger:       logger,
		HistoryLimit: domain.DefaultHistoryLimit,
		GuidancePath: "/dicas",
	})

	fmt.Fprintf(stderr, "=== Dashboard probe: %s ===\n\n", opts.backendURL)

	view.Start(ctx)
	view.Wait()
	snap := view.Snapshot()

	phases := []*phase{checkInventory(snap), checkEvaluation(snap)}

	index, pick := pickStation(snap.Stations, opts.station)
	prediction := &phase{name: "Prediction"}
	history := &phase{name: "History"}
	switch {
	case pick != "":
		prediction.errorf("%s", pick)
		history.errorf("skipped: no station selected")
	default:
		if err := view.Select(ctx, index); err != nil {
			prediction.errorf("select %d: %v", index, err)
			history.errorf("skipped: selection failed")
			break
		}
		view.Wait()
		snap = view.Snapshot()
		checkPrediction(prediction, snap)
		checkHistory(history, snap)
	}
	phases = append(phases, prediction, history)

	allPassed := report(stderr, phases)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		fmt.Fprintf(stderr, "FATAL: encode view: %v\n", err)
		return 1
	}

	if !allPassed {
		return 1
	}
	return 0
}

func checkInventory(v dashboard.View) *phase {
	p := &phase{name: "Station inventory"}
	if v.Loading {
		p.errorf("inventory still loading after startup")
	}
	if len(v.Stations) == 0 {
		p.errorf("no stations returned (empty, malformed or unreachable)")
	}
	if len(v.Markers) == 0 && len(v.Stations) > 0 {
		p.errorf("none of %d stations has both coordinates", len(v.Stations))
	}
	return p
}

func checkEvaluation(v dashboard.View) *phase {
	p := &phase{name: "Model evaluation"}
	if v.EvaluationPanel.Status != dashboard.PanelReady || v.EvaluationChart == nil {
		p.errorf("evaluation panel is %s: %s", v.EvaluationPanel.Status, v.EvaluationPanel.Message)
		return p
	}
	for _, ds := range v.EvaluationChart.Datasets {
		missing := 0
		for _, m := range ds.Missing {
			if m {
				missing++
			}
		}
		if missing == len(ds.Missing) {
			p.errorf("model %q reported no metrics", ds.Label)
		}
	}
	return p
}

func checkPrediction(p *phase, v dashboard.View) {
	switch {
	case v.Prediction == nil:
		p.errorf("no prediction after selection (phase %s)", v.Phase)
	case v.Prediction.Failed():
		p.errorf("prediction failed: %s", v.Prediction.Error)
	case v.Prediction.Probability < 0 || v.Prediction.Probability > 1:
		p.errorf("probability %v outside [0,1]", v.Prediction.Probability)
	}
}

func checkHistory(p *phase, v dashboard.View) {
	if v.Phase != dashboard.PhaseSuccess {
		p.errorf("skipped: prediction did not succeed")
		return
	}
	switch v.HistoryPanel.Status {
	case dashboard.PanelReady, dashboard.PanelNoData:
	default:
		p.errorf("history panel is %s: %s", v.HistoryPanel.Status, v.HistoryPanel.Message)
		return
	}
	if v.History == nil {
		return
	}
	for i, pt := range v.History.Series {
		if pt.Probability < 0 || pt.Probability > 1 {
			p.errorf("point %d (%s): probability %v outside [0,1]", i, pt.Timestamp, pt.Probability)
		}
	}
}

// pickStation returns the inventory index to select, or a reason why none can be.
func pickStation(stations []domain.Station, name string) (int, string) {
	for i, s := range stations {
		if _, ok := s.Coordinates(); !ok {
			continue
		}
		if name == "" || s.Name == name {
			return i, ""
		}
	}
	if name != "" {
		return -1, fmt.Sprintf("station %q not found or has no coordinates", name)
	}
	return -1, "no station with coordinates"
}

func report(w io.Writer, phases []*phase) bool {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
	if allPassed {
		fmt.Fprintln(w, "\nAll checks passed.")
	} else {
		fmt.Fprintln(w, "\nProbe FAILED.")
	}
	return allPassed
}
