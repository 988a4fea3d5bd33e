package project

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

// MaxUploadBytes bounds the content accepted by UploadFile.
const MaxUploadBytes = 1 << 20

// CreateFile adds a file to projectID. An empty fileType is derived from the
// name. The project is not required to exist; when it does its updatedAt is bumped.
func (s *Service) CreateFile(ctx context.Context, projectID, name, content, fileType string) (domain.ProjectFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ProjectFile{}, ErrInvalidName
	}
	if fileType == "" {
		fileType = domain.FileTypeFor(name)
	}
	if !domain.ValidFileType(fileType) {
		return domain.ProjectFile{}, ErrInvalidFileType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	file := domain.ProjectFile{
		ID:        s.newID(),
		Name:      name,
		Path:      domain.FilePath(name),
		Content:   content,
		Type:      fileType,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
		Size:      domain.ContentSize(content),
	}
	s.files = append(s.files, file)
	if err := s.persistFilesLocked(ctx); err != nil {
		return file, err
	}
	if s.bumpProjectLocked(projectID) {
		if err := s.persistProjectsLocked(ctx); err != nil {
			return file, err
		}
	}
	return file, nil
}

// UploadFile reads text content from r and stores it as a file whose type is
// derived from the name's extension.
func (s *Service) UploadFile(ctx context.Context, projectID, name string, r io.Reader) (domain.ProjectFile, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return domain.ProjectFile{}, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return domain.ProjectFile{}, ErrContentTooLarge
	}
	if !utf8.Valid(raw) {
		return domain.ProjectFile{}, ErrBinaryContent
	}
	return s.CreateFile(ctx, projectID, name, string(raw), domain.FileTypeFor(name))
}

// UpdateFile merges update into the file, recomputing size when content is
// supplied, and bumps the owning project. Unknown IDs are ignored.
func (s *Service) UpdateFile(ctx context.Context, fileID string, update domain.FileUpdate) error {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return ErrInvalidName
	}
	if update.Type != nil && !domain.ValidFileType(*update.Type) {
		return ErrInvalidFileType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.fileIndexLocked(fileID)
	if idx < 0 {
		return nil
	}
	f := &s.files[idx]
	update.Apply(f)
	f.UpdatedAt = s.stamp(f.UpdatedAt)
	projectID := f.ProjectID
	if err := s.persistFilesLocked(ctx); err != nil {
		return err
	}
	if s.bumpProjectLocked(projectID) {
		return s.persistProjectsLocked(ctx)
	}
	return nil
}

// DeleteFile removes the file and bumps its project. Unknown IDs are ignored.
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.fileIndexLocked(fileID)
	if idx < 0 {
		return nil
	}
	projectID := s.files[idx].ProjectID
	s.files = append(s.files[:idx], s.files[idx+1:]...)
	if err := s.persistFilesLocked(ctx); err != nil {
		return err
	}
	if s.bumpProjectLocked(projectID) {
		return s.persistProjectsLocked(ctx)
	}
	return nil
}

// GetFileByID returns the file with id.
func (s *Service) GetFileByID(id string) (domain.ProjectFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.fileIndexLocked(id)
	if idx < 0 {
		return domain.ProjectFile{}, false
	}
	return s.files[idx], true
}

// GetFilesByProjectID returns the project's files in insertion order.
func (s *Service) GetFilesByProjectID(projectID string) []domain.ProjectFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filesForLocked(projectID)
}

func (s *Service) filesForLocked(projectID string) []domain.ProjectFile {
	out := []domain.ProjectFile{}
	for _, f := range s.files {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	return out
}

func (s *Service) fileIndexLocked(id string) int {
	for i := range s.files {
		if s.files[i].ID == id {
			return i
		}
	}
	return -1
}
