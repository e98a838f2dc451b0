package model

import (
	"fmt"

	"github.com/google/uuid"
)

var idPrefixes = map[ViewType]string{
	ViewTodo:   "td",
	ViewWBS:    "wb",
	ViewKanban: "kb",
	ViewGantt:  "gt",
}

// GenerateID returns a new record id for view, e.g. "td-1a2b3c4d".
func GenerateID(view ViewType) string {
	prefix, ok := idPrefixes[view]
	if !ok {
		prefix = "xx"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// GenerateLinkID returns a new TaskLink row id.
func GenerateLinkID() string {
	return uuid.New().String()
}
