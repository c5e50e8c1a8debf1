package model

import "time"

// Record is one typed row ready for insertion. CopyValues returns the
// values in the same order as the destination's ColumnNames().
type Record interface {
	Destination() string
	CopyValues() []any
}

// EngineerRow is a row of the engineers table.
type EngineerRow struct {
	ID   int
	Name string
}

func (r *EngineerRow) Destination() string { return Engineer }

func (r *EngineerRow) CopyValues() []any {
	return []any{r.ID, r.Name}
}

// TeamRow is a row of the teams table. EngineerIDs stays in its
// comma-separated source form.
type TeamRow struct {
	TeamID      int
	TeamName    string
	EngineerIDs string
}

func (r *TeamRow) Destination() string { return Team }

func (r *TeamRow) CopyValues() []any {
	return []any{r.TeamID, r.TeamName, r.EngineerIDs}
}

// ProjectRow is a row of the projects table.
type ProjectRow struct {
	ProjectID   int
	ProjectName string
}

func (r *ProjectRow) Destination() string { return Project }

func (r *ProjectRow) CopyValues() []any {
	return []any{r.ProjectID, r.ProjectName}
}

// RepositoryRow is a row of the repositories table.
type RepositoryRow struct {
	RepoID    int
	ProjectID int
	RepoName  string
}

func (r *RepositoryRow) Destination() string { return Repository }

func (r *RepositoryRow) CopyValues() []any {
	return []any{r.RepoID, r.ProjectID, r.RepoName}
}

// IssueRow is a row of the jira_issues table. ResolutionDate is nil for
// unresolved issues.
type IssueRow struct {
	IssueID        int
	ProjectID      int
	AuthorID       int
	CreationDate   time.Time
	ResolutionDate *time.Time
	Category       string
}

func (r *IssueRow) Destination() string { return Issue }

func (r *IssueRow) CopyValues() []any {
	// A typed nil pointer must reach the driver as an untyped nil.
	var resolved any
	if r.ResolutionDate != nil {
		resolved = *r.ResolutionDate
	}
	return []any{r.IssueID, r.ProjectID, r.AuthorID, r.CreationDate, resolved, r.Category}
}

// CommitRow is a row of the commits table.
type CommitRow struct {
	CommitID    string
	EngineerID  int
	JiraIssueID int
	RepoID      int
	CommitDate  time.Time
	AIUsed      bool
	LinesOfCode int
}

func (r *CommitRow) Destination() string { return Commit }

func (r *CommitRow) CopyValues() []any {
	return []any{r.CommitID, r.EngineerID, r.JiraIssueID, r.RepoID, r.CommitDate, r.AIUsed, r.LinesOfCode}
}
