package models

import "time"

type MaterialKind string

const (
	KindPDF   MaterialKind = "pdf"
	KindSlide MaterialKind = "slide"
	KindVideo MaterialKind = "video"
	KindCode  MaterialKind = "code"
)

func (k MaterialKind) Valid() bool {
	switch k {
	case KindPDF, KindSlide, KindVideo, KindCode:
		return true
	}
	return false
}

type Material struct {
	ID          int          `json:"id"`
	Kind        MaterialKind `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Author      string       `json:"author"`
	Category    string       `json:"category"`
	FilePath    string       `json:"file_path"`
	Thumbnail   string       `json:"thumbnail"`
	Tags        []string     `json:"tags"`
	Views       int          `json:"views"`
	Downloads   int          `json:"downloads"`
	CreatedAt   time.Time    `json:"created_at"`
}

type SearchResult struct {
	Title    string `json:"title"`
	Type     string `json:"type"`
	Category string `json:"category"`
	URL      string `json:"url"`
}
