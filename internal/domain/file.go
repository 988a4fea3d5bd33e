package domain

import (
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// File types understood by the editor.
const (
	FileTypeJS   = "js"
	FileTypeJSX  = "jsx"
	FileTypeTS   = "ts"
	FileTypeTSX  = "tsx"
	FileTypeCSS  = "css"
	FileTypeSCSS = "scss"
	FileTypeHTML = "html"
	FileTypeJSON = "json"
	FileTypeMD   = "md"
	FileTypeTXT  = "txt"
)

var fileTypes = map[string]struct{}{
	FileTypeJS: {}, FileTypeJSX: {}, FileTypeTS: {}, FileTypeTSX: {}, FileTypeCSS: {},
	FileTypeSCSS: {}, FileTypeHTML: {}, FileTypeJSON: {}, FileTypeMD: {}, FileTypeTXT: {},
}

// ProjectFile is a text file owned by a project.
type ProjectFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Size      int       `json:"size"`
}

// FileUpdate carries a partial file mutation.
type FileUpdate struct {
	Name    *string `json:"name,omitempty"`
	Path    *string `json:"path,omitempty"`
	Content *string `json:"content,omitempty"`
	Type    *string `json:"type,omitempty"`
}

// Apply merges the update into f, recomputing Size when content is supplied.
func (u FileUpdate) Apply(f *ProjectFile) {
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.Path != nil {
		f.Path = *u.Path
	}
	if u.Content != nil {
		f.Content = *u.Content
		f.Size = ContentSize(f.Content)
	}
	if u.Type != nil {
		f.Type = *u.Type
	}
}

// FilePath returns the canonical path for a file name.
func FilePath(name string) string {
	return "/" + name
}

// ContentSize is the character length of content.
func ContentSize(content string) int {
	return utf8.RuneCountInString(content)
}

// ValidFileType reports whether t is a known file type.
func ValidFileType(t string) bool {
	_, ok := fileTypes[t]
	return ok
}

// FileTypeFor derives a file type from the extension of name, defaulting to txt.
func FileTypeFor(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ValidFileType(ext) {
		return ext
	}
	return FileTypeTXT
}
