package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"parkmatch/internal/modules/matching"
)

const slotsJSON = `{
  "pune": [
    {"id": "S1", "latitude": 18.5204, "longitude": 73.8567, "city": "Pune", "area": "Camp",
     "type": "street", "status": "available", "pricePerHour": 20},
    {"id": "S2", "latitude": 18.5300, "longitude": 73.8500, "city": "Pune", "area": "Deccan",
     "type": "mall", "status": "available", "pricePerHour": 60}
  ]
}`

const requestsJSON = `[
  {"id": "r-low", "userLat": 18.5204, "userLng": 73.8567, "priority": 1},
  {"id": "r-high", "userLat": 18.5204, "userLng": 73.8567, "priority": 5},
  {"id": "r-far", "userLat": 19.5, "userLng": 75.0, "maxDistance": 1}
]`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func testApp() *cli.App {
	return &cli.App{Name: "parkbench", Commands: []*cli.Command{matchCmd, cellsCmd}}
}

func TestMatchCommandWritesResult(t *testing.T) {
	dir := t.TempDir()
	pool := writeFile(t, dir, "slots.json", slotsJSON)
	reqs := writeFile(t, dir, "requests.json", requestsJSON)
	out := filepath.Join(dir, "result.json")

	err := testApp().Run([]string{"parkbench", "match", "--pool", pool, "--requests", reqs, "--out", out})
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var res matching.BatchResult
	require.NoError(t, json.Unmarshal(b, &res))

	assert.Equal(t, 3, res.TotalRequests)
	assert.Equal(t, 2, res.MatchedCount)
	assert.Equal(t, []string{"r-far"}, res.UnmatchedReqs)

	byReq := map[string]string{}
	for _, m := range res.Matches {
		byReq[m.RequestID] = string(m.ParkingSlot.ID)
	}
	assert.Equal(t, "S1", byReq["r-high"], "higher priority takes the closest cheap slot")
	assert.Equal(t, "S2", byReq["r-low"])
}

func TestMatchCommandBadRequestsFile(t *testing.T) {
	dir := t.TempDir()
	pool := writeFile(t, dir, "slots.json", slotsJSON)
	reqs := writeFile(t, dir, "requests.json", `{"not": "an array"}`)

	err := testApp().Run([]string{"parkbench", "match", "--pool", pool, "--requests", reqs})
	assert.Error(t, err)
}

func TestCellsCommandValidation(t *testing.T) {
	assert.NoError(t, testApp().Run([]string{"parkbench", "cells", "--lat", "18.52", "--lng", "73.85", "--radius-km", "1"}))
	assert.Error(t, testApp().Run([]string{"parkbench", "cells", "--lat", "95", "--lng", "73.85"}))
	assert.Error(t, testApp().Run([]string{"parkbench", "cells", "--lat", "18.52", "--lng", "73.85", "--radius-km", "0"}))
}
