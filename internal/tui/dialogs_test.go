package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"wtsync/internal/workflow"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func pickOptions() []workflow.Option {
	return []workflow.Option{
		{Label: "main", Value: "main", Description: "branch"},
		{Label: "feature", Value: "feature", Description: "branch"},
		{Label: "v1.0", Value: "v1.0", Description: "tag"},
	}
}

func TestPickModelDefaultAndEnter(t *testing.T) {
	m := newPickModel(workflow.PickRequest{Title: "Pick", Options: pickOptions(), Default: "feature"}, NewStyles("mocha"))
	updated, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Fatal("enter should quit")
	}
	opt, err := updated.(pickModel).result()
	if err != nil || opt.Value != "feature" {
		t.Errorf("result = %+v, %v", opt, err)
	}
}

func TestPickModelNavigation(t *testing.T) {
	m := newPickModel(workflow.PickRequest{Title: "Pick", Options: pickOptions()}, NewStyles("mocha"))
	updated, _ := m.Update(key("down"))
	updated, _ = updated.Update(key("enter"))
	opt, _ := updated.(pickModel).result()
	if opt.Value != "feature" {
		t.Errorf("selected %q after down, want feature", opt.Value)
	}
}

func TestPickModelCancelAndBack(t *testing.T) {
	styles := NewStyles("mocha")

	m := newPickModel(workflow.PickRequest{Options: pickOptions()}, styles)
	updated, _ := m.Update(key("esc"))
	if _, err := updated.(pickModel).result(); !errors.Is(err, workflow.ErrCancelled) {
		t.Errorf("esc result error = %v, want ErrCancelled", err)
	}

	m = newPickModel(workflow.PickRequest{Options: pickOptions()}, styles)
	updated, _ = m.Update(key("shift+tab"))
	if _, err := updated.(pickModel).result(); errors.Is(err, workflow.ErrBack) {
		t.Error("shift+tab without AllowBack should not go back")
	}

	m = newPickModel(workflow.PickRequest{Options: pickOptions(), AllowBack: true}, styles)
	updated, _ = m.Update(key("shift+tab"))
	if _, err := updated.(pickModel).result(); !errors.Is(err, workflow.ErrBack) {
		t.Errorf("shift+tab result error = %v, want ErrBack", err)
	}
}

func TestPickModelView(t *testing.T) {
	m := newPickModel(workflow.PickRequest{Title: "Select a branch", Options: pickOptions(), AllowBack: true}, NewStyles("mocha"))
	view := m.View()
	for _, want := range []string{"Select a branch", "main", "shift+tab back"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestInputModelValidation(t *testing.T) {
	req := workflow.InputRequest{
		Title: "Branch name",
		Validate: func(s string) string {
			if s == "" {
				return "name required"
			}
			return ""
		},
	}
	m := newInputModel(req, NewStyles("mocha"))

	updated, _ := m.Update(key("enter"))
	im := updated.(inputModel)
	if im.done {
		t.Fatal("invalid value should not submit")
	}
	if !strings.Contains(im.View(), "name required") {
		t.Error("validation message should be shown")
	}

	updated, _ = im.Update(key("x"))
	updated, _ = updated.Update(key("enter"))
	v, err := updated.(inputModel).result()
	if err != nil || v != "x" {
		t.Errorf("result = %q, %v", v, err)
	}
}

func TestInputModelPrefillAndBack(t *testing.T) {
	m := newInputModel(workflow.InputRequest{Value: "/tmp/wt", AllowBack: true}, NewStyles("mocha"))
	if m.input.Value() != "/tmp/wt" {
		t.Errorf("prefill = %q", m.input.Value())
	}
	updated, _ := m.Update(key("shift+tab"))
	if _, err := updated.(inputModel).result(); !errors.Is(err, workflow.ErrBack) {
		t.Errorf("error = %v, want ErrBack", err)
	}
}

func TestConfirmModel(t *testing.T) {
	styles := NewStyles("mocha")
	tests := []struct {
		name    string
		keys    []string
		want    bool
		wantErr error
	}{
		{"y", []string{"y"}, true, nil},
		{"n", []string{"n"}, false, nil},
		{"enter defaults to no", []string{"enter"}, false, nil},
		{"toggle then enter", []string{"tab", "enter"}, true, nil},
		{"esc", []string{"esc"}, false, workflow.ErrCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m tea.Model = newConfirmModel("Prune", "Remove?", nil, styles)
			for _, k := range tt.keys {
				m, _ = m.Update(key(k))
			}
			got, err := m.(confirmModel).result()
			if got != tt.want || !errors.Is(err, tt.wantErr) {
				t.Errorf("result = %v, %v; want %v, %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestConfirmModelListsItems(t *testing.T) {
	items := make([]string, maxConfirmItems+3)
	for i := range items {
		items[i] = "/wt/" + string(rune('a'+i))
	}
	view := newConfirmModel("Prune", "Remove 18 records?", items, NewStyles("mocha")).View()
	if !strings.Contains(view, "/wt/a") || !strings.Contains(view, "and more") {
		t.Errorf("view = %s", view)
	}
}

func TestProgressModel(t *testing.T) {
	m := newProgressModel("Fetching", true, NewStyles("mocha"))
	updated, _ := m.Update(progressLineMsg("Receiving objects: 50%"))
	if !strings.Contains(updated.View(), "Receiving objects") {
		t.Error("reported line should be shown")
	}
	updated, cmd := updated.Update(key("esc"))
	if !updated.(progressModel).dismissed || cmd == nil {
		t.Error("esc should dismiss a cancellable indicator")
	}

	m = newProgressModel("Creating", false, NewStyles("mocha"))
	updated, _ = m.Update(key("esc"))
	if updated.(progressModel).dismissed {
		t.Error("non-cancellable indicator must ignore esc")
	}
	updated, _ = updated.Update(progressDoneMsg{})
	if !updated.(progressModel).finished {
		t.Error("done message should finish")
	}
}
