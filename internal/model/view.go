package model

import (
	"fmt"
	"strings"
)

// ViewType identifies one of the four view-specific stores a task can live in.
type ViewType string

const (
	ViewTodo   ViewType = "todo"
	ViewWBS    ViewType = "wbs"
	ViewKanban ViewType = "kanban"
	ViewGantt  ViewType = "gantt"
)

// AllViews lists every view in canonical order.
var AllViews = []ViewType{ViewTodo, ViewWBS, ViewKanban, ViewGantt}

func (v ViewType) IsValid() bool {
	switch v {
	case ViewTodo, ViewWBS, ViewKanban, ViewGantt:
		return true
	}
	return false
}

func (v ViewType) String() string {
	return string(v)
}

// ParseViewType converts user input (case-insensitive) into a ViewType.
func ParseViewType(s string) (ViewType, error) {
	v := ViewType(strings.ToLower(strings.TrimSpace(s)))
	if !v.IsValid() {
		return "", fmt.Errorf("invalid view type: %q (want one of todo, wbs, kanban, gantt)", s)
	}
	return v, nil
}

// ParseViewTypes parses a comma-separated list of views, dropping duplicates
// while keeping first-seen order.
func ParseViewTypes(s string) ([]ViewType, error) {
	var views []ViewType
	seen := make(map[ViewType]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := ParseViewType(part)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		views = append(views, v)
	}
	return views, nil
}
