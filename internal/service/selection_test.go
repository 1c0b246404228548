package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/prodscout/internal/models"
)

func TestSelectionSet(t *testing.T) {
	tr := NewTracker([]models.ProductRecord{record("a", "A", "Audio")}, nil)
	s := NewSelectionSet([]string{"Audio", "Video", "Misc"})

	assert.True(t, s.ToggleCategory(tr, "Audio"))
	assert.True(t, s.ToggleCategory(tr, "Video"))
	assert.False(t, s.ToggleCategory(tr, "Nope"))
	assert.Equal(t, []string{"Audio", "Video"}, s.SelectedCategories())

	s.SetIdentified(tr, map[string][]string{
		"Audio": {"A", "B", "Shared"},
		"Video": {"Shared", "V"},
	})
	assert.False(t, s.IsProductSelected("Audio", "A"), "stored products are not preselected")
	assert.True(t, s.IsProductSelected("Audio", "B"))
	assert.Equal(t, 4, s.TotalSelected())

	assert.False(t, s.ToggleProduct(tr, "Audio", "A"), "accounted products cannot be selected")
	assert.False(t, s.ToggleProduct(tr, "Audio", "B"))
	assert.True(t, s.ToggleProduct(tr, "Audio", "B"))
	assert.False(t, s.ToggleProduct(tr, "Audio", "Unknown"))

	assert.Equal(t, []Selection{
		{ProductName: "B", Category: "Audio"},
		{ProductName: "Shared", Category: "Audio"},
		{ProductName: "V", Category: "Video"},
	}, s.Selections(quietLogger()))

	s.Clear()
	assert.Empty(t, s.SelectedCategories())
	assert.Zero(t, s.TotalSelected())
	assert.Empty(t, s.Selections(nil))
	assert.Equal(t, []string{"A", "B", "Shared"}, s.Identified("Audio"))
}

func TestSelectionSetRefusesCompleteCategory(t *testing.T) {
	s := NewSelectionSet([]string{"Audio"})
	empty := NewTracker(nil, nil)
	s.SetIdentified(empty, map[string][]string{"Audio": {"A"}})

	done := NewTracker([]models.ProductRecord{record("a", "A", "Audio")}, nil)
	assert.False(t, s.ToggleCategory(done, "Audio"))

	s.SelectAll(done)
	assert.Empty(t, s.SelectedCategories())

	s.SelectAll(empty)
	assert.Equal(t, []string{"Audio"}, s.SelectedCategories())
	assert.False(t, s.ToggleCategory(empty, "Audio"), "toggling a selected category deselects it")
}
