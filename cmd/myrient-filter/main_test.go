package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JohnDeved/myrient-filter/internal/downloader"
	"github.com/JohnDeved/myrient-filter/internal/filter"
)

func testManifest() manifest {
	return newManifest("No-Intro", "Nintendo - Game Boy",
		filter.Policy{RegionLimit: true, Region: "USA", ExcludePatterns: []string{"(Beta)"}, LatestRevision: true},
		[]filter.Release{
			{Filename: "Tetris (World) (Rev 1).zip", URL: "https://example.com/Tetris%20(World)%20(Rev%201).zip"},
			{Filename: "Zelda (USA).zip", URL: "https://example.com/Zelda%20(USA).zip"},
		})
}

func TestWriteManifest_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeManifest(&buf, "text", testManifest()))
	assert.Equal(t,
		"Tetris (World) (Rev 1).zip\thttps://example.com/Tetris%20(World)%20(Rev%201).zip\n"+
			"Zelda (USA).zip\thttps://example.com/Zelda%20(USA).zip\n",
		buf.String())
}

func TestWriteManifest_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeManifest(&buf, "json", testManifest()))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "Nintendo - Game Boy", out["system"])
	assert.EqualValues(t, 2, out["count"])
	assert.Len(t, out["releases"], 2)
}

func TestWriteManifest_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeManifest(&buf, "yaml", testManifest()))

	var out manifest
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, testManifest(), out)
}

func TestWriteManifest_EmptySelection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeManifest(&buf, "json", newManifest("No-Intro", "X", filter.Policy{}, nil)))
	assert.Contains(t, buf.String(), `"releases": []`)
}

func TestWriteManifest_UnknownFormat(t *testing.T) {
	err := writeManifest(&bytes.Buffer{}, "xml", testManifest())
	assert.ErrorContains(t, err, "unknown format")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []*downloader.Item{
		{Name: "a.zip", Status: downloader.StatusCompleted},
		{Name: "b.zip", Status: downloader.StatusSkipped},
		{Name: "c.zip", Status: downloader.StatusFailed, Err: errors.New("HTTP 404")},
	})
	out := buf.String()
	assert.Contains(t, out, "skipped  b.zip")
	assert.Contains(t, out, "failed   c.zip: HTTP 404")
	assert.Contains(t, out, "1 completed (0 B), 1 skipped, 1 failed")
}
