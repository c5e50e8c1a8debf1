package transform

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

func dest(t *testing.T, name string) model.Destination {
	t.Helper()
	d, ok := model.DestinationByName(name)
	if !ok {
		t.Fatalf("unknown destination %q", name)
	}
	return d
}

func TestTransform_Engineer(t *testing.T) {
	rec, err := Transform(map[string]string{"id": " 7 ", "name": "Ada"}, dest(t, model.Engineer))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	e, ok := rec.(*model.EngineerRow)
	if !ok {
		t.Fatalf("expected *EngineerRow, got %T", rec)
	}
	if e.ID != 7 || e.Name != "Ada" {
		t.Errorf("unexpected row: %+v", e)
	}
}

func TestTransform_IssueOptionalResolution(t *testing.T) {
	fields := map[string]string{
		"issue_id":        "10",
		"project_id":      "2",
		"author_id":       "3",
		"creation_date":   "2024-01-15",
		"resolution_date": "",
		"category":        "Bug",
	}
	rec, err := Transform(fields, dest(t, "JiraIssue"))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	issue := rec.(*model.IssueRow)
	if issue.ResolutionDate != nil {
		t.Errorf("expected nil resolution date, got %v", issue.ResolutionDate)
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !issue.CreationDate.Equal(want) {
		t.Errorf("creation date: got %v, want %v", issue.CreationDate, want)
	}
	if vals := issue.CopyValues(); vals[4] != nil {
		t.Errorf("copy value for resolution_date should be untyped nil, got %#v", vals[4])
	}

	fields["resolution_date"] = "2024-02-01T10:00:00Z"
	rec, err = Transform(fields, dest(t, model.Issue))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := rec.(*model.IssueRow).ResolutionDate; got == nil || got.Month() != time.February {
		t.Errorf("resolution date not parsed: %v", got)
	}
}

func TestTransform_CommitBoolean(t *testing.T) {
	base := map[string]string{
		"commit_id":     "abc123",
		"engineer_id":   "1",
		"jira_issue_id": "2",
		"repo_id":       "3",
		"commit_date":   "2024-03-01",
		"lines_of_code": "120",
	}
	tests := []struct {
		raw  string
		set  bool
		want bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"True", true, true},
		{"false", true, false},
		{"1", true, false},
		{"yes", true, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			fields := make(map[string]string, len(base)+1)
			for k, v := range base {
				fields[k] = v
			}
			if tt.set {
				fields["ai_used"] = tt.raw
			}
			rec, err := Transform(fields, dest(t, model.Commit))
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			c := rec.(*model.CommitRow)
			if c.AIUsed != tt.want {
				t.Errorf("ai_used %q: got %v, want %v", tt.raw, c.AIUsed, tt.want)
			}
			if c.LinesOfCode != 120 || c.CommitID != "abc123" {
				t.Errorf("unexpected row: %+v", c)
			}
		})
	}
}

func TestTransform_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		dest   string
		fields map[string]string
		field  string
	}{
		{"missing_required", model.Engineer, map[string]string{"id": "1"}, "name"},
		{"blank_required", model.Engineer, map[string]string{"id": "1", "name": "  "}, "name"},
		{"non_integer", model.Engineer, map[string]string{"id": "x", "name": "Bob"}, "id"},
		{"partial_integer", model.Project, map[string]string{"project_id": "12abc", "project_name": "P"}, "project_id"},
		{"bad_date", model.Issue, map[string]string{
			"issue_id": "1", "project_id": "1", "author_id": "1",
			"creation_date": "yesterday", "category": "Bug",
		}, "creation_date"},
		{"bad_optional_date", model.Issue, map[string]string{
			"issue_id": "1", "project_id": "1", "author_id": "1",
			"creation_date": "2024-01-01", "resolution_date": "soon", "category": "Bug",
		}, "resolution_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Transform(tt.fields, dest(t, tt.dest))
			if err == nil {
				t.Fatalf("expected error, got record %+v", rec)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field: got %q, want %q", ve.Field, tt.field)
			}
			if rec != nil {
				t.Errorf("expected nil record on error")
			}
		})
	}
}

func TestTransform_UnknownDestination(t *testing.T) {
	_, err := Transform(map[string]string{}, model.Destination{Name: "nope"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestTransform_ConcurrentUse(t *testing.T) {
	d := dest(t, model.Repository)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				rec, err := Transform(map[string]string{"repo_id": "4", "project_id": "5", "repo_name": "core"}, d)
				if err != nil {
					t.Errorf("Transform: %v", err)
					return
				}
				if r := rec.(*model.RepositoryRow); r.RepoID != 4 || r.ProjectID != 5 {
					t.Errorf("unexpected row: %+v", r)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-01-15", "2024-01-15"},
		{"01/15/2024", "2024-01-15"},
		{"1/5/2024", "2024-01-05"},
		{"2024/01/15", "2024-01-15"},
		{"Jan 15, 2024", "2024-01-15"},
		{"2024-01-15T08:30:00Z", "2024-01-15"},
		{"2024-01-15 08:30:00", "2024-01-15"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDate(tt.input)
			if got == nil {
				t.Fatalf("ParseDate(%q) = nil", tt.input)
			}
			if s := got.Format("2006-01-02"); s != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, s, tt.want)
			}
		})
	}
	if ParseDate("  ") != nil {
		t.Error("blank input should be nil")
	}
	if ParseDate("not a date") != nil {
		t.Error("garbage should be nil")
	}
}
