package model

import "time"

// Record is a view-native task as owned by one view store.
type Record interface {
	View() ViewType
	RecordID() string
}

// Draft is the creation shape of a view-native record. Drafts are also
// reused as the field set written by sync propagation.
type Draft interface {
	View() ViewType
}

type WBSStatus string

const (
	WBSNotStarted WBSStatus = "not_started"
	WBSInProgress WBSStatus = "in_progress"
	WBSCompleted  WBSStatus = "completed"
)

func (s WBSStatus) IsValid() bool {
	switch s {
	case WBSNotStarted, WBSInProgress, WBSCompleted:
		return true
	}
	return false
}

// StatusForProgress derives a WBS status from a progress percentage.
func StatusForProgress(progress int) WBSStatus {
	switch {
	case progress <= 0:
		return WBSNotStarted
	case progress >= 100:
		return WBSCompleted
	}
	return WBSInProgress
}

// DefaultKanbanLane is the lane every Todo-derived card lands in.
const DefaultKanbanLane = "todo"

type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Assignee    string     `json:"assignee"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t Todo) View() ViewType    { return ViewTodo }
func (t Todo) RecordID() string { return t.ID }

type NewTodo struct {
	Title       string
	Description string
	Completed   bool
	DueDate     *time.Time
	Assignee    string
}

func (NewTodo) View() ViewType { return ViewTodo }

// WBSTask is a node in the work-breakdown tree. Position orders siblings
// under the same parent.
type WBSTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Position    int        `json:"position"`
	Status      WBSStatus  `json:"status"`
	Progress    int        `json:"progress"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Assignee    string     `json:"assignee"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t WBSTask) View() ViewType    { return ViewWBS }
func (t WBSTask) RecordID() string { return t.ID }

type NewWBSTask struct {
	Name        string
	Description string
	// ParentID nil with Position 0 appends as the next top-level sibling.
	ParentID  *string
	Position  int
	Status    WBSStatus
	Progress  int
	StartDate *time.Time
	EndDate   *time.Time
	Assignee  string
}

func (NewWBSTask) View() ViewType { return ViewWBS }

type KanbanLane struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type KanbanCard struct {
	ID          string     `json:"id"`
	LaneID      string     `json:"lane_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Assignee    string     `json:"assignee"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (c KanbanCard) View() ViewType    { return ViewKanban }
func (c KanbanCard) RecordID() string { return c.ID }

type NewKanbanCard struct {
	LaneID      string
	Title       string
	Description string
	DueDate     *time.Time
	Assignee    string
}

func (NewKanbanCard) View() ViewType { return ViewKanban }

type GanttTask struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Progress  int       `json:"progress"`
	Assignee  string    `json:"assignee"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t GanttTask) View() ViewType    { return ViewGantt }
func (t GanttTask) RecordID() string { return t.ID }

type NewGanttTask struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Progress  int
	Assignee  string
}

func (NewGanttTask) View() ViewType { return ViewGantt }

// GanttDep is a finish-to-start edge between two gantt bars.
type GanttDep struct {
	TaskID    string `json:"task_id"`
	DependsOn string `json:"depends_on"`
}
