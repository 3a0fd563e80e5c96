package domain

import "testing"

func TestBoundingBoxIntersects(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want bool
	}{
		{
			name: "overlapping",
			a:    NewBoundingBox(0, 10, 0, 10),
			b:    NewBoundingBox(5, 15, 5, 15),
			want: true,
		},
		{
			name: "disjoint x",
			a:    NewBoundingBox(0, 10, 0, 10),
			b:    NewBoundingBox(11, 20, 0, 10),
			want: false,
		},
		{
			name: "disjoint y",
			a:    NewBoundingBox(0, 10, 0, 10),
			b:    NewBoundingBox(0, 10, 11, 20),
			want: false,
		},
		{
			name: "touching edge",
			a:    NewBoundingBox(0, 10, 0, 10),
			b:    NewBoundingBox(10, 20, 0, 10),
			want: true,
		},
		{
			name: "touching corner",
			a:    NewBoundingBox(0, 10, 0, 10),
			b:    NewBoundingBox(10, 20, 10, 20),
			want: true,
		},
		{
			name: "contained",
			a:    NewBoundingBox(0, 10, 0, 10),
			b:    NewBoundingBox(2, 8, 2, 8),
			want: true,
		},
		{
			name: "identical",
			a:    NewBoundingBox(-5, 5, -5, 5),
			b:    NewBoundingBox(-5, 5, -5, 5),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersects(tt.b); got != tt.want {
				t.Errorf("a.Intersects(b) = %v, want %v", got, tt.want)
			}
			// Symmetric in its arguments.
			if got := tt.b.Intersects(tt.a); got != tt.want {
				t.Errorf("b.Intersects(a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBoxContains(t *testing.T) {
	box := NewBoundingBox(8, 9, 47, 48)

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"interior", 47.5, 8.5, true},
		{"west edge", 47.5, 8, true},
		{"east edge", 47.5, 9, true},
		{"south edge", 47, 8.5, true},
		{"north edge", 48, 8.5, true},
		{"corner", 47, 8, true},
		{"west of box", 47.5, 7.999, false},
		{"north of box", 48.001, 8.5, false},
		{"swapped axes", 8.5, 47.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Contains(tt.lat, tt.lon); got != tt.want {
				t.Errorf("Contains(%g, %g) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestNewBoundingBoxSwapsInverted(t *testing.T) {
	box := NewBoundingBox(9, 8, 48, 47)
	if box.XMin != 8 || box.XMax != 9 || box.YMin != 47 || box.YMax != 48 {
		t.Errorf("NewBoundingBox swapped wrong: %+v", box)
	}
}

func TestBoundingBoxValidate(t *testing.T) {
	valid := NewBoundingBox(8, 9, 47, 48)
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	inverted := BoundingBox{XMin: 9, XMax: 8, YMin: 47, YMax: 48}
	if err := inverted.Validate(); err == nil {
		t.Error("Validate() = nil for inverted bounds, want error")
	}
}
