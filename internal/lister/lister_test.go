package lister

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnDeved/myrient-filter/internal/client"
	"github.com/JohnDeved/myrient-filter/internal/filter"
)

type fakeSource struct {
	dirs    []string
	entries []client.Entry
	err     error
}

func (f *fakeSource) ListDirectories(ctx context.Context, subPath string) ([]string, error) {
	return f.dirs, f.err
}

func (f *fakeSource) ListFiles(ctx context.Context, subPath, system string) ([]client.Entry, error) {
	return f.entries, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func entry(name, rawURL string) client.Entry {
	return client.Entry{Name: name, URL: rawURL}
}

func snesSource() *fakeSource {
	base := "https://example.com/files/No-Intro/SNES/"
	return &fakeSource{entries: []client.Entry{
		{Name: "Extras", URL: base + "Extras/", IsDir: true},
		entry("Alpha (USA).zip", base+"Alpha%20%28USA%29.zip"),
		entry("Alpha (USA) (Rev 1).zip", base+"Alpha%20%28USA%29%20%28Rev%201%29.zip"),
		entry("Alpha (Europe).zip", base+"Alpha%20%28Europe%29.zip"),
		entry("Beta Quest (USA) (Beta).zip", base+"Beta%20Quest%20%28USA%29%20%28Beta%29.zip"),
		entry("Cosmic (World).zip", base+"Cosmic%20%28World%29.zip"),
	}}
}

func names(releases []filter.Release) []string {
	out := make([]string, 0, len(releases))
	for _, r := range releases {
		out = append(out, r.Filename)
	}
	return out
}

func TestListReleases_LatestUSA(t *testing.T) {
	l := New(snesSource(), filter.Policy{
		RegionLimit:    true,
		Region:         "USA",
		SmartFilters:   true,
		LatestRevision: true,
	}, quietLogger())

	releases, err := l.ListReleases(context.Background(), "No-Intro", "SNES")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha (USA) (Rev 1).zip", "Cosmic (World).zip"}, names(releases))
	assert.Equal(t, "https://example.com/files/No-Intro/SNES/Alpha%20%28USA%29%20%28Rev%201%29.zip", releases[0].URL)
}

func TestListReleases_AllEligibleInListingOrder(t *testing.T) {
	l := New(snesSource(), filter.Policy{}, quietLogger())

	releases, err := l.ListReleases(context.Background(), "No-Intro", "SNES")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Alpha (USA).zip",
		"Alpha (USA) (Rev 1).zip",
		"Alpha (Europe).zip",
		"Beta Quest (USA) (Beta).zip",
		"Cosmic (World).zip",
	}, names(releases))
}

func TestListReleases_SourceError(t *testing.T) {
	fetchErr := &client.FetchError{URL: "https://example.com/", StatusCode: 503}
	l := New(&fakeSource{err: fetchErr}, filter.Policy{}, quietLogger())

	_, err := l.ListReleases(context.Background(), "No-Intro", "SNES")
	var target *client.FetchError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, 503, target.StatusCode)

	_, err = l.ListDirectories(context.Background(), "No-Intro")
	assert.ErrorIs(t, err, fetchErr)
}

func TestNew_CopiesPolicy(t *testing.T) {
	patterns := []string{"Demo"}
	l := New(&fakeSource{}, filter.Policy{ExcludePatterns: patterns}, quietLogger())
	patterns[0] = "changed"
	assert.Equal(t, []string{"Demo"}, l.Policy().ExcludePatterns)
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "Game (USA).zip", filenameFromURL("https://example.com/a/Game%20%28USA%29.zip", "x"))
	assert.Equal(t, "fallback", filenameFromURL("https://example.com", "fallback"))
	assert.Equal(t, "fallback", filenameFromURL("://bad", "fallback"))
}
