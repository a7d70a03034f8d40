package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/JohnDeved/myrient-filter/internal/downloader"
	"github.com/JohnDeved/myrient-filter/internal/filter"
	"github.com/JohnDeved/myrient-filter/internal/util"
)

// manifest is the machine-readable form of a selection.
type manifest struct {
	Collection string           `json:"collection" yaml:"collection"`
	System     string           `json:"system" yaml:"system"`
	Policy     filter.Policy    `json:"policy" yaml:"policy"`
	Count      int              `json:"count" yaml:"count"`
	Releases   []filter.Release `json:"releases" yaml:"releases"`
}

func newManifest(collection, system string, policy filter.Policy, releases []filter.Release) manifest {
	if releases == nil {
		releases = []filter.Release{}
	}
	return manifest{
		Collection: collection,
		System:     system,
		Policy:     policy,
		Count:      len(releases),
		Releases:   releases,
	}
}

func writeManifest(w io.Writer, format string, m manifest) error {
	switch format {
	case "", "text":
		for _, r := range m.Releases {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Filename, r.URL); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func printSummary(w io.Writer, items []*downloader.Item) {
	var completed, skipped, failed int
	for _, it := range items {
		snap := it.Snapshot()
		switch snap.Status {
		case downloader.StatusCompleted:
			completed++
		case downloader.StatusSkipped:
			skipped++
			fmt.Fprintf(w, "  skipped  %s\n", snap.Name)
		case downloader.StatusFailed:
			failed++
			fmt.Fprintf(w, "  failed   %s: %v\n", snap.Name, snap.Err)
		}
	}
	var total int64
	for _, it := range items {
		if it.Snapshot().Status == downloader.StatusCompleted {
			total += it.DoneBytes.Load()
		}
	}
	fmt.Fprintf(w, "%d completed (%s), %d skipped, %d failed\n",
		completed, util.FormatBytes(total), skipped, failed)
}
