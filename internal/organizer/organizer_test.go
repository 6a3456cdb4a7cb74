package organizer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/italolelis/mosdac_downloader/internal/mosdac"
	"github.com/stretchr/testify/assert"
)

func TestLayout_Path(t *testing.T) {
	item := mosdac.DatasetItem{Identifier: "X001.h5", ID: "1", Updated: "2024-01-09T03:04:05Z"}

	tests := []struct {
		name   string
		layout Layout
		item   mosdac.DatasetItem
		want   string
	}{
		{
			name:   "by date",
			layout: Layout{Root: "/data", ByDate: true},
			item:   item,
			want:   filepath.Join("/data", "SAT", "2024", "09JAN", "X001.h5"),
		},
		{
			name:   "flat",
			layout: Layout{Root: "/data"},
			item:   item,
			want:   filepath.Join("/data", "X001.h5"),
		},
		{
			name:   "missing timestamp",
			layout: Layout{Root: "/data", ByDate: true},
			item:   mosdac.DatasetItem{Identifier: "X002.h5"},
			want:   filepath.Join("/data", "SAT", "X002.h5"),
		},
		{
			name:   "unparseable timestamp",
			layout: Layout{Root: "/data", ByDate: true},
			item:   mosdac.DatasetItem{Identifier: "X003.h5", Updated: "yesterday"},
			want:   filepath.Join("/data", "SAT", "X003.h5"),
		},
		{
			name:   "late in the year",
			layout: Layout{Root: "/data", ByDate: true},
			item:   mosdac.DatasetItem{Identifier: "X004.h5", Updated: "2023-12-31T23:59:59Z"},
			want:   filepath.Join("/data", "SAT", "2023", "31DEC", "X004.h5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.layout.Path(context.Background(), "SAT", tt.item))
		})
	}
}

func TestLayout_Deterministic(t *testing.T) {
	layout := Layout{Root: "/data", ByDate: true}
	item := mosdac.DatasetItem{Identifier: "X001.h5", Updated: "2024-08-09T10:00:00Z"}

	first := layout.Path(context.Background(), "SAT", item)
	second := layout.Path(context.Background(), "SAT", item)

	assert.Equal(t, first, second)
	assert.Equal(t, filepath.Join("/data", "SAT", "2024", "09AUG", "X001.h5"), first)
}

func TestValidName(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"3RIMG_01JAN2024_0015_L1B_STD_V01R00.h5", true},
		{"..hidden.h5", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../escaped.h5", false},
		{"/etc/passwd", false},
		{"sub/X001.h5", false},
		{`..\escaped.h5`, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.id))
		})
	}
}

func TestLayout_DatasetDir(t *testing.T) {
	dir, ok := Layout{Root: "/data", ByDate: true}.DatasetDir("SAT")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("/data", "SAT"), dir)

	_, ok = Layout{Root: "/data"}.DatasetDir("SAT")
	assert.False(t, ok, "a flat root is shared")

	_, ok = Layout{Root: "/data", ByDate: true}.DatasetDir("../SAT")
	assert.False(t, ok)
}
