package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

// ValidationError reports a field that could not be converted to its
// declared type. The row it belongs to is counted as failed.
type ValidationError struct {
	Destination string
	Field       string
	Value       string
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s (value %q)", e.Destination, e.Field, e.Reason, e.Value)
}

// Transform converts a header-keyed row of raw strings into the typed
// record for dest. It holds no state and is safe for concurrent use.
func Transform(fields map[string]string, dest model.Destination) (model.Record, error) {
	p := parser{dest: dest.Name, fields: fields}

	var rec model.Record
	switch dest.Name {
	case model.Engineer:
		rec = &model.EngineerRow{
			ID:   p.integer("id"),
			Name: p.text("name"),
		}
	case model.Team:
		rec = &model.TeamRow{
			TeamID:      p.integer("team_id"),
			TeamName:    p.text("team_name"),
			EngineerIDs: p.text("engineer_ids"),
		}
	case model.Project:
		rec = &model.ProjectRow{
			ProjectID:   p.integer("project_id"),
			ProjectName: p.text("project_name"),
		}
	case model.Repository:
		rec = &model.RepositoryRow{
			RepoID:    p.integer("repo_id"),
			ProjectID: p.integer("project_id"),
			RepoName:  p.text("repo_name"),
		}
	case model.Issue:
		rec = &model.IssueRow{
			IssueID:        p.integer("issue_id"),
			ProjectID:      p.integer("project_id"),
			AuthorID:       p.integer("author_id"),
			CreationDate:   p.date("creation_date"),
			ResolutionDate: p.optionalDate("resolution_date"),
			Category:       p.text("category"),
		}
	case model.Commit:
		rec = &model.CommitRow{
			CommitID:    p.text("commit_id"),
			EngineerID:  p.integer("engineer_id"),
			JiraIssueID: p.integer("jira_issue_id"),
			RepoID:      p.integer("repo_id"),
			CommitDate:  p.date("commit_date"),
			AIUsed:      p.boolean("ai_used"),
			LinesOfCode: p.integer("lines_of_code"),
		}
	default:
		return nil, &ValidationError{Destination: dest.Name, Reason: "unknown destination"}
	}

	if p.err != nil {
		return nil, p.err
	}
	return rec, nil
}

// parser keeps the first conversion error so field extraction reads as a
// flat struct literal.
type parser struct {
	dest   string
	fields map[string]string
	err    *ValidationError
}

func (p *parser) fail(field, value, reason string) {
	if p.err == nil {
		p.err = &ValidationError{Destination: p.dest, Field: field, Value: value, Reason: reason}
	}
}

// required returns the trimmed value, failing if it is absent or blank.
func (p *parser) required(field string) (string, bool) {
	raw, ok := p.fields[field]
	v := strings.TrimSpace(raw)
	if !ok || v == "" {
		p.fail(field, raw, "required field is missing")
		return "", false
	}
	return v, true
}

func (p *parser) text(field string) string {
	v, _ := p.required(field)
	return v
}

func (p *parser) integer(field string) int {
	v, ok := p.required(field)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(field, v, "not an integer")
		return 0
	}
	return n
}

func (p *parser) date(field string) time.Time {
	v, ok := p.required(field)
	if !ok {
		return time.Time{}
	}
	t := ParseDate(v)
	if t == nil {
		p.fail(field, v, "unrecognized date")
		return time.Time{}
	}
	return *t
}

func (p *parser) optionalDate(field string) *time.Time {
	v := strings.TrimSpace(p.fields[field])
	if v == "" {
		return nil
	}
	t := ParseDate(v)
	if t == nil {
		p.fail(field, v, "unrecognized date")
	}
	return t
}

func (p *parser) boolean(field string) bool {
	return strings.EqualFold(strings.TrimSpace(p.fields[field]), "true")
}
