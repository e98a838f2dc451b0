package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/propagate"
	"github.com/baiirun/viewlink/internal/transfer"
)

const dateLayout = "2006-01-02"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	viewColors = map[model.ViewType]lipgloss.Color{
		model.ViewTodo:   lipgloss.Color("252"),
		model.ViewWBS:    lipgloss.Color("214"),
		model.ViewKanban: lipgloss.Color("141"),
		model.ViewGantt:  lipgloss.Color("42"),
	}
)

func viewLabel(v model.ViewType) string {
	return lipgloss.NewStyle().Foreground(viewColors[v]).Width(7).Render(string(v))
}

func syncLabel(enabled bool) string {
	if enabled {
		return okStyle.Render("sync on")
	}
	return dimStyle.Render("sync off")
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// JSON shapes.

type LinkJSON struct {
	ID           string    `json:"id"`
	View         string    `json:"view"`
	OriginalID   string    `json:"original_id"`
	SyncEnabled  bool      `json:"sync_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

type GroupJSON struct {
	UnifiedID   string     `json:"unified_id"`
	SyncEnabled bool       `json:"sync_enabled"`
	Links       []LinkJSON `json:"links"`
}

type SyncJSON struct {
	UnifiedID string           `json:"unified_id,omitempty"`
	Synced    []string         `json:"synced"`
	Skipped   []SkippedJSON    `json:"skipped"`
	Failed    []FailedSyncJSON `json:"failed"`
}

type SkippedJSON struct {
	View   string `json:"view"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type FailedSyncJSON struct {
	View  string `json:"view"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

type StatusJSON struct {
	DBPath        string                    `json:"db_path"`
	SchemaVersion int                       `json:"schema_version"`
	Groups        int                       `json:"groups"`
	Links         int                       `json:"links"`
	Views         map[string]ViewStatusJSON `json:"views"`
}

type ViewStatusJSON struct {
	Records     int `json:"records"`
	Linked      int `json:"linked"`
	SyncEnabled int `json:"sync_enabled"`
}

func toLinkJSON(l model.TaskLink) LinkJSON {
	return LinkJSON{
		ID:           l.ID,
		View:         string(l.ViewType),
		OriginalID:   l.OriginalID,
		SyncEnabled:  l.SyncEnabled,
		CreatedAt:    l.CreatedAt,
		LastSyncedAt: l.LastSyncedAt,
	}
}

func toGroupJSON(g *model.TaskLinkGroup) GroupJSON {
	out := GroupJSON{UnifiedID: g.UnifiedID.String(), SyncEnabled: g.SyncEnabled, Links: []LinkJSON{}}
	for _, l := range g.Links {
		out.Links = append(out.Links, toLinkJSON(l))
	}
	return out
}

func toSyncJSON(r *propagate.Result) SyncJSON {
	out := SyncJSON{UnifiedID: r.UnifiedID.String(), Synced: []string{}, Skipped: []SkippedJSON{}, Failed: []FailedSyncJSON{}}
	for _, l := range r.Synced {
		out.Synced = append(out.Synced, string(l.ViewType)+":"+l.OriginalID)
	}
	for _, s := range r.Skipped {
		out.Skipped = append(out.Skipped, SkippedJSON{View: string(s.Link.ViewType), ID: s.Link.OriginalID, Reason: string(s.Reason)})
	}
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, FailedSyncJSON{View: string(f.Link.ViewType), ID: f.Link.OriginalID, Error: f.Err.Error()})
	}
	return out
}

// Text rendering.

func renderGroup(g *model.TaskLinkGroup) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(g.UnifiedID.String()))
	b.WriteString("  " + syncLabel(g.SyncEnabled) + "\n")
	for _, l := range g.Links {
		synced := "never"
		if !l.LastSyncedAt.Equal(l.CreatedAt) {
			synced = l.LastSyncedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "  %s %-12s %s  %s\n",
			viewLabel(l.ViewType), l.OriginalID, syncLabel(l.SyncEnabled),
			dimStyle.Render("last synced "+synced))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTransfer(r *transfer.Result) string {
	var b strings.Builder
	for _, t := range r.Transferred {
		fmt.Fprintf(&b, "%s %s -> %s %s\n", okStyle.Render("✓"), t.TaskID, viewLabel(t.TargetView), t.NewID)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "%s %s\n", errorStyle.Render("✗"), e)
	}
	if len(r.Transferred) == 0 && len(r.Errors) == 0 {
		b.WriteString(dimStyle.Render("Nothing to transfer") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSync(r *propagate.Result) string {
	if r.UnifiedID == "" {
		return dimStyle.Render("Not linked; nothing to sync")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(r.UnifiedID.String()))
	for _, l := range r.Synced {
		fmt.Fprintf(&b, "  %s %s %s\n", okStyle.Render("synced "), viewLabel(l.ViewType), l.OriginalID)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "  %s %s %s %s\n", dimStyle.Render("skipped"), viewLabel(s.Link.ViewType), s.Link.OriginalID,
			dimStyle.Render("("+string(s.Reason)+")"))
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "  %s %s %s %s\n", errorStyle.Render("failed "), viewLabel(f.Link.ViewType), f.Link.OriginalID, f.Err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(path string, version int, r *db.LinkReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("viewlink") + " " + dimStyle.Render(path) + "\n")
	fmt.Fprintf(&b, "%s %d   %s %d   %s %d\n",
		labelStyle.Render("schema"), version,
		labelStyle.Render("groups"), r.Groups,
		labelStyle.Render("links"), r.Links)
	for _, v := range model.AllViews {
		c := r.ByView[v]
		fmt.Fprintf(&b, "  %s %4d records  %4d linked  %4d syncing\n", viewLabel(v), c.Records, c.Linked, c.SyncEnabled)
	}
	return strings.TrimRight(b.String(), "\n")
}
