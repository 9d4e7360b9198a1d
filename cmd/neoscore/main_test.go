package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

func TestRun_FeedFixturePasses(t *testing.T) {
	f, err := os.Open("../../internal/pipeline/testdata/feed.json")
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	code := run(f, &out, false)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "4 objects scored. All validations passed.")

	var marked []string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "*") {
			marked = append(marked, line)
		}
	}
	require.Len(t, marked, 1, "only the first hazardous object is marked")
	assert.Contains(t, marked[0], "453309 (2019 HZ4)")
}

func TestRun_QuietSkipsTable(t *testing.T) {
	f, err := os.Open("../../internal/pipeline/testdata/feed.json")
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	require.Equal(t, 0, run(f, &out, true))
	assert.NotContains(t, out.String(), "HAZARDOUS")
}

func TestRun_MalformedFeed(t *testing.T) {
	var out bytes.Buffer
	code := run(strings.NewReader(`{"element_count": 3}`), &out, false)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}

func TestValidateScores_FlagsInconsistentRecords(t *testing.T) {
	p := validateScores("test", []domain.Asteroid{
		{Name: "ok", RiskScore: 50, Risk: domain.RiskHigh},
		{Name: "out of range", RiskScore: 120, Risk: domain.RiskCritical},
		{Name: "wrong label", RiskScore: 5, Risk: domain.RiskLow},
	})
	require.Len(t, p.errors, 2)
	assert.Contains(t, p.errors[0], "out of range")
	assert.Contains(t, p.errors[1], "wrong label")
}

func TestValidateHazardFloor(t *testing.T) {
	p := validateHazardFloor("test", []domain.Asteroid{
		{Name: "floored", Hazardous: true, RiskScore: 50},
		{Name: "safe", Hazardous: false, RiskScore: 3},
		{Name: "below floor", Hazardous: true, RiskScore: 49},
	})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "below floor")
}
