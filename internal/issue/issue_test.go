// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{PackageNotFoundId, false, "Package not found"},
		{PackageNotLoadableId, false, "could not be loaded"},
		{DescriptorParseErrorId, false, "Failed to parse package descriptor"},
		{UnsupportedVersionId, false, "Unsupported descriptor version"},
		{NameConflictId, false, "name already in use"},
		{PackageConflictId, false, "override-order"},
		{OverrideCycleId, false, "Override cycle"},
		{DuplicateBindingTypeId, false, "Duplicate binding type"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{BuildFailedId, false, "Repository build failed"},
		{Id(9999), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if issue.Id() != tt.id {
				t.Errorf("Id() = %d, want %d", issue.Id(), tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain %q", tt.id, tt.contains)
			}
		})
	}
}

func TestValues_OrderedById(t *testing.T) {
	issues := Values()
	if len(issues) != int(BuildFailedId) {
		t.Fatalf("Values() returned %d issues, want %d", len(issues), BuildFailedId)
	}
	for i, issue := range issues {
		if issue.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d", i, issue.Id())
		}
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	withLinks := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue",
		docLinks: []HttpLink{"https://docs.example.com"},
	}
	rendered, err := withLinks.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "See also") || !strings.Contains(rendered, "https://docs.example.com") {
		t.Errorf("Render() = %q", rendered)
	}

	links := withLinks.DocLinks()
	links[0] = "modified"
	if withLinks.DocLinks()[0] != "https://docs.example.com" {
		t.Error("DocLinks() should return a clone")
	}

	for _, issue := range Values() {
		rendered, err := issue.Render("")
		if err != nil || rendered == "" {
			t.Errorf("issue %d failed to render: %v", issue.Id(), err)
		}
		if strings.Contains(rendered, "See also") {
			t.Errorf("issue %d has no links and should not render a See also section", issue.Id())
		}
	}
}
