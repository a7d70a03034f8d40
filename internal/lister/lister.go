// Package lister turns directory listings into the selected set of releases.
package lister

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/JohnDeved/myrient-filter/internal/client"
	"github.com/JohnDeved/myrient-filter/internal/filter"
)

// Source provides directory listings. It is implemented by the HTTP client
// and by the offline index.
type Source interface {
	ListDirectories(ctx context.Context, subPath string) ([]string, error)
	ListFiles(ctx context.Context, subPath, system string) ([]client.Entry, error)
}

// Lister applies a selection policy to the listings of a Source.
type Lister struct {
	source Source
	policy filter.Policy
	log    logrus.FieldLogger
}

// New creates a lister. The policy is copied and fixed for the lister's lifetime.
func New(source Source, policy filter.Policy, log logrus.FieldLogger) *Lister {
	if log == nil {
		log = logrus.StandardLogger()
	}
	policy.ExcludePatterns = append([]string(nil), policy.ExcludePatterns...)
	return &Lister{source: source, policy: policy, log: log}
}

// Policy returns the lister's selection policy.
func (l *Lister) Policy() filter.Policy {
	return l.policy
}

// ListDirectories lists the sub-directories of subPath.
func (l *Lister) ListDirectories(ctx context.Context, subPath string) ([]string, error) {
	dirs, err := l.source.ListDirectories(ctx, subPath)
	if err != nil {
		return nil, fmt.Errorf("listing directories of %q: %w", subPath, err)
	}
	return dirs, nil
}

// ListReleases lists the files of system, drops ineligible ones and applies
// the revision policy.
func (l *Lister) ListReleases(ctx context.Context, subPath, system string) ([]filter.Release, error) {
	entries, err := l.source.ListFiles(ctx, subPath, system)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s: %w", subPath, system, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var eligible []filter.Release
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if ok, reason := l.policy.Check(e.Name); !ok {
			l.log.WithFields(logrus.Fields{"file": e.Name, "reason": reason}).Debug("Rejected")
			continue
		}
		eligible = append(eligible, filter.Release{
			Filename: filenameFromURL(e.URL, e.Name),
			URL:      e.URL,
		})
	}

	selected := l.policy.Select(eligible)
	l.log.WithFields(logrus.Fields{
		"system":   system,
		"listed":   len(entries),
		"eligible": len(eligible),
		"selected": len(selected),
	}).Info("Selected releases")
	return selected, nil
}

// filenameFromURL returns the decoded last path segment of fileURL, or
// fallback when the URL has none.
func filenameFromURL(fileURL, fallback string) string {
	u, err := url.Parse(fileURL)
	if err != nil || u.Path == "" {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return fallback
	}
	return name
}
