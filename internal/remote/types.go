package remote

// User identifies an account on the remote side.
type User struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Workspace is a top-level container for projects and users.
type Workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Project is a remote task list.
type Project struct {
	GID      string `json:"gid"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// NamedRef is a gid/name pair used for sections and similar references.
type NamedRef struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Membership places a task in one section of one parent list.
type Membership struct {
	Project NamedRef `json:"project"`
	Section NamedRef `json:"section"`
}

// Task is the transient snapshot of one remote task. The remote system owns
// the task; the sync engine never caches these across reconciliation passes.
type Task struct {
	GID          string       `json:"gid"`
	Name         string       `json:"name"`
	Completed    bool         `json:"completed"`
	DueOn        string       `json:"due_on"`
	Assignee     *User        `json:"assignee"`
	Notes        string       `json:"notes"`
	PermalinkURL string       `json:"permalink_url"`
	Memberships  []Membership `json:"memberships"`
}

// SectionIn returns the section name of the task's membership in the given
// parent list, or "" when the task has no membership there.
func (t Task) SectionIn(listGID string) string {
	for _, m := range t.Memberships {
		if m.Project.GID == listGID {
			return m.Section.Name
		}
	}

	return ""
}

// SectionGIDIn returns the section gid for the given parent list, or "".
func (t Task) SectionGIDIn(listGID string) string {
	for _, m := range t.Memberships {
		if m.Project.GID == listGID {
			return m.Section.GID
		}
	}

	return ""
}

// AssigneeName returns the assignee display name, or "" when unassigned.
func (t Task) AssigneeName() string {
	if t.Assignee == nil {
		return ""
	}

	return t.Assignee.Name
}
