package model

import "strings"

// Kind is the declared type of a destination column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

// Column describes one field of a destination table.
type Column struct {
	Name     string
	Kind     Kind
	Required bool
}

// Destination is the fixed field contract for one record kind.
type Destination struct {
	Name    string // e.g. "issue"
	Table   string // e.g. "jira_issues"
	Columns []Column
}

// ColumnNames returns the column names in table order.
func (d Destination) ColumnNames() []string {
	cols := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		cols[i] = c.Name
	}
	return cols
}

// Column returns the named column, or ok=false.
func (d Destination) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// LookupColumn resolves a header name to its column, ignoring surrounding
// spaces and case.
func (d Destination) LookupColumn(name string) (Column, bool) {
	name = strings.TrimSpace(name)
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Destination names.
const (
	Engineer   = "engineer"
	Team       = "team"
	Project    = "project"
	Repository = "repository"
	Issue      = "issue"
	Commit     = "commit"
)

// AllDestinations lists the supported destinations. Tables carry no
// foreign keys, so destinations load independently in any order.
var AllDestinations = []Destination{
	{Name: Engineer, Table: "engineers", Columns: []Column{
		{Name: "id", Kind: KindInt, Required: true},
		{Name: "name", Kind: KindText, Required: true},
	}},
	{Name: Team, Table: "teams", Columns: []Column{
		{Name: "team_id", Kind: KindInt, Required: true},
		{Name: "team_name", Kind: KindText, Required: true},
		{Name: "engineer_ids", Kind: KindText, Required: true},
	}},
	{Name: Project, Table: "projects", Columns: []Column{
		{Name: "project_id", Kind: KindInt, Required: true},
		{Name: "project_name", Kind: KindText, Required: true},
	}},
	{Name: Repository, Table: "repositories", Columns: []Column{
		{Name: "repo_id", Kind: KindInt, Required: true},
		{Name: "project_id", Kind: KindInt, Required: true},
		{Name: "repo_name", Kind: KindText, Required: true},
	}},
	{Name: Issue, Table: "jira_issues", Columns: []Column{
		{Name: "issue_id", Kind: KindInt, Required: true},
		{Name: "project_id", Kind: KindInt, Required: true},
		{Name: "author_id", Kind: KindInt, Required: true},
		{Name: "creation_date", Kind: KindDate, Required: true},
		{Name: "resolution_date", Kind: KindDate},
		{Name: "category", Kind: KindText, Required: true},
	}},
	{Name: Commit, Table: "commits", Columns: []Column{
		{Name: "commit_id", Kind: KindText, Required: true},
		{Name: "engineer_id", Kind: KindInt, Required: true},
		{Name: "jira_issue_id", Kind: KindInt, Required: true},
		{Name: "repo_id", Kind: KindInt, Required: true},
		{Name: "commit_date", Kind: KindDate, Required: true},
		{Name: "ai_used", Kind: KindBool},
		{Name: "lines_of_code", Kind: KindInt, Required: true},
	}},
}

// aliases maps the dashboard's model names onto destination names.
var aliases = map[string]string{
	"engineers":    Engineer,
	"teams":        Team,
	"projects":     Project,
	"repositories": Repository,
	"repo":         Repository,
	"jiraissue":    Issue,
	"jira_issue":   Issue,
	"jira_issues":  Issue,
	"issues":       Issue,
	"commits":      Commit,
}

// DestinationByName resolves a destination by name, case-insensitively.
// The original model names (e.g. "JiraIssue") are accepted too.
func DestinationByName(name string) (Destination, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	for _, d := range AllDestinations {
		if d.Name == key {
			return d, true
		}
	}
	return Destination{}, false
}

// DestinationMap returns a fresh name → Destination map of all destinations.
func DestinationMap() map[string]Destination {
	m := make(map[string]Destination, len(AllDestinations))
	for _, d := range AllDestinations {
		m[d.Name] = d
	}
	return m
}

// CheckHeader compares a file header against the destination. missing
// lists required columns absent from the header; extra lists header
// columns the destination does not know. The row loaders ignore extra
// columns; bulk copy rejects them.
func (d Destination) CheckHeader(header []string) (missing, extra []string) {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		c, ok := d.LookupColumn(h)
		if !ok {
			extra = append(extra, strings.TrimSpace(h))
			continue
		}
		seen[c.Name] = true
	}
	for _, c := range d.Columns {
		if c.Required && !seen[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	return missing, extra
}
