package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/muesli/reflow/truncate"

	"github.com/JohnDeved/myrient-filter/internal/downloader"
	"github.com/JohnDeved/myrient-filter/internal/util"
)

// downloadsModel renders the download queue as a scrollable list.
type downloadsModel struct {
	items  []*downloader.Item
	bar    progress.Model
	cursor int
	offset int
	height int
	manual bool // User scrolled; stop following the active item
}

func newDownloadsModel() downloadsModel {
	return downloadsModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		height: 20,
	}
}

func (d *downloadsModel) setItems(items []*downloader.Item) {
	d.items = items
	if d.cursor >= len(d.items) {
		d.cursor = len(d.items) - 1
		if d.cursor < 0 {
			d.cursor = 0
		}
	}
}

// follow moves the cursor to the active item until the user scrolls.
func (d *downloadsModel) follow() {
	if d.manual {
		return
	}
	for i, it := range d.items {
		if it.Snapshot().Status == downloader.StatusActive {
			d.cursor = i
			d.clampOffset()
			return
		}
	}
}

func (d *downloadsModel) clampOffset() {
	if d.cursor < d.offset {
		d.offset = d.cursor
	}
	if d.height > 0 && d.cursor >= d.offset+d.height {
		d.offset = d.cursor - d.height + 1
	}
}

func (d *downloadsModel) moveUp() {
	d.manual = true
	if d.cursor > 0 {
		d.cursor--
		d.clampOffset()
	}
}

func (d *downloadsModel) moveDown() {
	d.manual = true
	if d.cursor < len(d.items)-1 {
		d.cursor++
		d.clampOffset()
	}
}

func (d *downloadsModel) pageUp() {
	d.manual = true
	d.cursor -= d.height
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.clampOffset()
}

func (d *downloadsModel) pageDown() {
	d.manual = true
	d.cursor += d.height
	if d.cursor > len(d.items)-1 {
		d.cursor = len(d.items) - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.clampOffset()
}

// counts tallies items by status.
func (d *downloadsModel) counts() map[downloader.Status]int {
	c := make(map[downloader.Status]int)
	for _, it := range d.items {
		c[it.Snapshot().Status]++
	}
	return c
}

func (d *downloadsModel) view(width int, spin string) string {
	var sb strings.Builder

	if len(d.items) == 0 {
		sb.WriteString(helpStyle.Render("  Nothing to download.\n"))
		return sb.String()
	}

	c := d.counts()
	stats := fmt.Sprintf("  Active: %d  Queued: %d  Completed: %d  Skipped: %d  Failed: %d",
		c[downloader.StatusActive], c[downloader.StatusQueued], c[downloader.StatusCompleted],
		c[downloader.StatusSkipped], c[downloader.StatusFailed])
	sb.WriteString(helpStyle.Render(stats))
	sb.WriteString("\n\n")

	end := d.offset + d.height
	if end > len(d.items) {
		end = len(d.items)
	}

	nameWidth := width - 70
	if nameWidth < 20 {
		nameWidth = 20
	}

	for i := d.offset; i < end; i++ {
		snap := d.items[i].Snapshot()
		line := d.renderItem(snap, nameWidth, spin)
		if i == d.cursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(d.items) > d.height {
		sb.WriteString(helpStyle.Render(fmt.Sprintf("  %d/%d downloads", d.cursor+1, len(d.items))))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (d *downloadsModel) renderItem(snap downloader.Snapshot, nameWidth int, spin string) string {
	name := nameStyle.Render(fmt.Sprintf("%-*s", nameWidth, truncate.StringWithTail(snap.Name, uint(nameWidth), "…")))

	switch snap.Status {
	case downloader.StatusQueued:
		return fmt.Sprintf("  %s %s", helpStyle.Render("[Queued]     "), name)
	case downloader.StatusActive:
		info := util.FormatBytes(snap.Done)
		if snap.Total > 0 {
			info = fmt.Sprintf("%s / %s", util.FormatBytes(snap.Done), util.FormatBytes(snap.Total))
		}
		if speed := snap.Speed(); speed > 0 {
			info += fmt.Sprintf("  %s/s", util.FormatBytes(int64(speed)))
		}
		return fmt.Sprintf("  %s %s %s  %s", activeStyle.Render(spin+" Downloading"), name, d.bar.ViewAs(snap.Progress()), info)
	case downloader.StatusCompleted:
		return fmt.Sprintf("  %s %s %s", successStyle.Render("[Done]       "), name, helpStyle.Render(util.FormatBytes(snap.Done)))
	case downloader.StatusSkipped:
		return fmt.Sprintf("  %s %s", skippedStyle.Render("[Skipped]    "), name)
	default:
		line := fmt.Sprintf("  %s %s", errorStyle.Render("[Failed]     "), name)
		if snap.Err != nil {
			line += "  " + errorStyle.Render(snap.Err.Error())
		}
		return line
	}
}
