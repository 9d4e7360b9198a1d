// Command neoscore scores a saved NeoWs feed response offline and checks the
// scoring invariants against it and against the built-in fallback dataset.
//
// Usage:
//
//	curl -s 'https://api.nasa.gov/neo/rest/v1/feed?start_date=2026-10-15&end_date=2026-10-15&api_key=DEMO_KEY' > feed.json
//	go run ./cmd/neoscore -feed feed.json
//
// Pass -feed - to read the response from stdin.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/neo-risk-service/internal/adapter/neows"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a NeoWs feed JSON response, or - for stdin")
	quiet := flag.Bool("quiet", false, "skip the score table and print only the validation summary")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	in := os.Stdin
	if *feedPath != "-" {
		f, err := os.Open(*feedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	os.Exit(run(in, os.Stdout, *quiet))
}

func run(in io.Reader, out io.Writer, quiet bool) int {
	raws, err := neows.DecodeFeed(in)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	assessed := make([]domain.Asteroid, 0, len(raws))
	for _, raw := range raws {
		assessed = append(assessed, domain.Assess(raw))
	}

	if !quiet {
		printTable(out, assessed)
	}

	phases := []*phase{
		validateScores("Feed: score bounds and labels", assessed),
		validateHazardFloor("Feed: hazard floor", assessed),
		validateScores("Fallback: score bounds and labels", domain.Fallback()),
		validateHazardFloor("Fallback: hazard floor", domain.Fallback()),
		validateFallbackScoring(domain.Fallback()),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintf(out, "\n%d objects scored. All validations passed.\n", len(assessed))
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// printTable lists objects in feed order. The first hazardous object, the one
// a daily scan would alert on, is marked with an asterisk.
func printTable(out io.Writer, asteroids []domain.Asteroid) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tHAZARDOUS\tSCORE\tRISK\tAPPROACH\tKM/S\tMISS KM")

	marked := false
	for _, a := range asteroids {
		mark := ""
		if a.Hazardous && !marked {
			mark, marked = "*", true
		}
		approach := a.Approach()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\t%s\t%s\t%s\n",
			mark, a.ID, a.Name, a.Hazardous, a.RiskScore, a.Risk,
			approach.DateFull, approach.VelocityKmS, approach.MissDistanceKm)
	}
	tw.Flush() //nolint:errcheck // stdout
}

func validateScores(name string, asteroids []domain.Asteroid) *phase {
	p := &phase{name: name}
	for _, a := range asteroids {
		if a.RiskScore < 0 || a.RiskScore > 100 {
			p.errorf("%s: score %d outside 0..100", a.Name, a.RiskScore)
		}
		if want := domain.LabelFor(a.RiskScore); a.Risk != want {
			p.errorf("%s: label %q does not match score %d (want %q)", a.Name, a.Risk, a.RiskScore, want)
		}
	}
	return p
}

func validateHazardFloor(name string, asteroids []domain.Asteroid) *phase {
	p := &phase{name: name}
	for _, a := range asteroids {
		if a.Hazardous && a.RiskScore < 50 {
			p.errorf("%s: hazardous but scored %d", a.Name, a.RiskScore)
		}
	}
	return p
}

// validateFallbackScoring checks that the fallback dataset carries the scores
// the scorer would give it.
func validateFallbackScoring(asteroids []domain.Asteroid) *phase {
	p := &phase{name: "Fallback: scores reproducible"}
	for _, a := range asteroids {
		rescored := domain.AssessCanonical(a)
		if rescored.RiskScore != a.RiskScore || rescored.Risk != a.Risk {
			p.errorf("%s: stored %d %s, scorer gives %d %s",
				a.Name, a.RiskScore, a.Risk, rescored.RiskScore, rescored.Risk)
		}
	}
	return p
}
