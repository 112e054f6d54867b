package models

import (
	"strings"
	"testing"
)

func TestItemValidation(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty title is valid",
			item:    Item{Title: ""},
			wantErr: false,
		},
		{
			name:    "200-char title is valid",
			item:    Item{Title: strings.Repeat("a", 200)},
			wantErr: false,
		},
		{
			name:    "multibyte title counts runes",
			item:    Item{Title: strings.Repeat("é", 200)},
			wantErr: false,
		},
		{
			name:    "201-char title should fail",
			item:    Item{Title: strings.Repeat("a", 201)},
			wantErr: true,
			errMsg:  "title must be 200 characters or fewer",
		},
		{
			name:    "negative id should fail",
			item:    Item{ID: -1, Title: "Buy milk"},
			wantErr: true,
			errMsg:  "id must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestItem_Toggled(t *testing.T) {
	item := Item{ID: 7, Title: "Buy milk", Completed: false}

	toggled := item.Toggled()

	if !toggled.Completed {
		t.Error("expected toggled copy to be completed")
	}
	if toggled.ID != item.ID || toggled.Title != item.Title {
		t.Errorf("expected id and title to be kept, got %+v", toggled)
	}
	if item.Completed {
		t.Error("expected original item to be unchanged")
	}
	if toggled.Toggled() != item {
		t.Error("expected toggling twice to restore the item")
	}
}

func TestItem_IsNew(t *testing.T) {
	if !(Item{}).IsNew() {
		t.Error("expected zero id to be new")
	}
	if (Item{ID: 1}).IsNew() {
		t.Error("expected persisted id not to be new")
	}
}

func TestStats(t *testing.T) {
	items := []Item{
		{ID: 1, Completed: true},
		{ID: 2},
		{ID: 3},
	}

	done, pending := Stats(items)
	if done != 1 || pending != 2 {
		t.Errorf("expected 1 done and 2 pending, got %d and %d", done, pending)
	}

	done, pending = Stats(nil)
	if done != 0 || pending != 0 {
		t.Errorf("expected zero counts for nil, got %d and %d", done, pending)
	}
}
