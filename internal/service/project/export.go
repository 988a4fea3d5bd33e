package project

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatZIP  = "zip"
)

// Export is a downloadable snapshot of a project.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

type exportDocument struct {
	Project exportProject `json:"project"`
	Files   []exportFile  `json:"files"`
}

type exportProject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Status      string    `json:"status"`
}

type exportFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExportFilename derives the download name for a project export.
func ExportFilename(projectName, format string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(projectName, "-")) + "-export." + format
}

// ExportProject snapshots the project and its files. Format "" means json.
func (s *Service) ExportProject(_ context.Context, projectID, format string) (Export, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatZIP {
		return Export{}, ErrInvalidFormat
	}

	s.mu.RLock()
	idx := s.projectIndexLocked(projectID)
	if idx < 0 {
		s.mu.RUnlock()
		return Export{}, repository.ErrNotFound
	}
	p := s.projects[idx]
	files := s.filesForLocked(projectID)
	s.mu.RUnlock()

	doc := exportDocument{
		Project: exportProject{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
			Status:      p.Status,
		},
		Files: make([]exportFile, 0, len(files)),
	}
	for _, f := range files {
		doc.Files = append(doc.Files, exportFile{Name: f.Name, Path: f.Path, Content: f.Content, Type: f.Type})
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Export{}, fmt.Errorf("encode export: %w", err)
	}

	if format == FormatJSON {
		return Export{Filename: ExportFilename(p.Name, FormatJSON), ContentType: "application/json", Data: raw}, nil
	}

	archive, err := zipExport(raw, files)
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: ExportFilename(p.Name, FormatZIP), ContentType: "application/zip", Data: archive}, nil
}

// zipExport packs the JSON document as project.json plus every file at its path.
func zipExport(document []byte, files []domain.ProjectFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	add := func(name string, content []byte, modified time.Time) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", name, err)
		}
		_, err = w.Write(content)
		return err
	}

	if err := add("project.json", document, time.Time{}); err != nil {
		return nil, err
	}
	for _, f := range files {
		name := "files/" + strings.TrimPrefix(f.Path, "/")
		if err := add(name, []byte(f.Content), f.UpdatedAt); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
