// Package models defines the domain types for Easel.
package models

import "time"

// Board describes a sketch board and its current raster state.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Point is a coordinate in raster space (origin top-left, +y down).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is a single continuous pointer-down-to-pointer-up gesture.
// Color and Width override the board pen when non-zero.
type Stroke struct {
	Points []Point `json:"points"`
	Color  string  `json:"color,omitempty"`
	Width  float64 `json:"width,omitempty"`
}

// Pen holds the current stroke color and width. The cap style is always round.
type Pen struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// GalleryImage is an image file in the gallery directory as mirrored by the
// catalog. Disk is the source of truth; Width and Height are decoded at
// index time.
type GalleryImage struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileInfo is lightweight metadata for a gallery file on disk.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
