package model

import "testing"

func TestDestinationByName(t *testing.T) {
	tests := []struct {
		input string
		want  string
		table string
	}{
		{"engineer", Engineer, "engineers"},
		{"Engineer", Engineer, "engineers"},
		{"JiraIssue", Issue, "jira_issues"},
		{"jira_issue", Issue, "jira_issues"},
		{" commit ", Commit, "commits"},
		{"Repository", Repository, "repositories"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, ok := DestinationByName(tt.input)
			if !ok {
				t.Fatalf("DestinationByName(%q) not found", tt.input)
			}
			if d.Name != tt.want || d.Table != tt.table {
				t.Errorf("got %s/%s, want %s/%s", d.Name, d.Table, tt.want, tt.table)
			}
		})
	}

	if _, ok := DestinationByName("payroll"); ok {
		t.Error("expected unknown destination to be rejected")
	}
}

func TestRecordValuesMatchColumns(t *testing.T) {
	records := map[string]Record{
		Engineer:   &EngineerRow{},
		Team:       &TeamRow{},
		Project:    &ProjectRow{},
		Repository: &RepositoryRow{},
		Issue:      &IssueRow{},
		Commit:     &CommitRow{},
	}
	for name, d := range DestinationMap() {
		rec, ok := records[name]
		if !ok {
			t.Fatalf("no record type for destination %q", name)
		}
		if rec.Destination() != name {
			t.Errorf("%T.Destination() = %q, want %q", rec, rec.Destination(), name)
		}
		if got, want := len(rec.CopyValues()), len(d.ColumnNames()); got != want {
			t.Errorf("%s: %d copy values for %d columns", name, got, want)
		}
	}
}

func TestCheckHeader(t *testing.T) {
	d, _ := DestinationByName(Issue)
	missing, extra := d.CheckHeader([]string{"issue_id", "project_id", "author_id", "Creation_Date", " category", "severity"})
	if len(missing) != 0 {
		t.Errorf("missing: got %v, want none (resolution_date is optional)", missing)
	}
	if len(extra) != 1 || extra[0] != "severity" {
		t.Errorf("extra: got %v, want [severity]", extra)
	}

	missing, _ = d.CheckHeader([]string{"issue_id"})
	if len(missing) != 4 {
		t.Errorf("missing: got %v, want 4 columns", missing)
	}
}

func TestLookupColumn(t *testing.T) {
	d, _ := DestinationByName(Issue)
	for _, name := range []string{"creation_date", " Creation_Date ", "CREATION_DATE"} {
		c, ok := d.LookupColumn(name)
		if !ok || c.Name != "creation_date" || c.Kind != KindDate {
			t.Errorf("LookupColumn(%q) = %+v, %v", name, c, ok)
		}
	}
	if _, ok := d.LookupColumn("created"); ok {
		t.Error("unknown column resolved")
	}
}
