package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"
)

type mockUserRepository struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	lookups int
	findErr error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrAlreadyExists
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	if user, ok := m.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepository) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// mockNoteRepository applies UpdateContent as a compare-and-swap on Version.
type mockNoteRepository struct {
	mu        sync.Mutex
	notes     map[string]*domain.Note
	updateErr error
	// beforeUpdate runs inside UpdateContent before the version check, with
	// the lock held. Tests use it to simulate a writer in another process.
	beforeUpdate func(note *domain.Note)
	updates      int
}

func newMockNoteRepository() *mockNoteRepository {
	return &mockNoteRepository{
		notes: make(map[string]*domain.Note),
	}
}

func (m *mockNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[note.ID]; ok {
		return repository.ErrAlreadyExists
	}
	copied := *note
	m.notes[note.ID] = &copied
	return nil
}

func (m *mockNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if note, ok := m.notes[id]; ok {
		copied := *note
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockNoteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var notes []*domain.Note
	for _, note := range m.notes {
		if note.OwnerID == ownerID {
			copied := *note
			notes = append(notes, &copied)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

func (m *mockNoteRepository) UpdateContent(ctx context.Context, id, content string, expectedVersion int64) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}

	note, ok := m.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(note)
	}
	if note.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	note.Content = content
	note.Version++
	m.updates++

	copied := *note
	return &copied, nil
}

func (m *mockNoteRepository) Update(ctx context.Context, next *domain.Note, expectedVersion int64) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}

	note, ok := m.notes[next.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(note)
	}
	if note.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	note.Title = next.Title
	note.Content = next.Content
	note.FolderID = next.FolderID
	note.Version++
	m.updates++

	copied := *note
	return &copied, nil
}

func (m *mockNoteRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *mockNoteRepository) filter(keep func(*domain.Note) bool) []*domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()

	var notes []*domain.Note
	for _, note := range m.notes {
		if keep(note) {
			copied := *note
			notes = append(notes, &copied)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

func (m *mockNoteRepository) ListByFolder(ctx context.Context, ownerID, folderID string) ([]*domain.Note, error) {
	return m.filter(func(n *domain.Note) bool {
		return n.OwnerID == ownerID && n.FolderID != nil && *n.FolderID == folderID
	}), nil
}

func (m *mockNoteRepository) Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error) {
	query = strings.ToLower(query)
	return m.filter(func(n *domain.Note) bool {
		return n.OwnerID == ownerID &&
			(strings.Contains(strings.ToLower(n.Title), query) || strings.Contains(strings.ToLower(n.Content), query))
	}), nil
}

func (m *mockNoteRepository) FindByShareCode(ctx context.Context, code string) (*domain.Note, error) {
	notes := m.filter(func(n *domain.Note) bool { return n.ShareCode != nil && *n.ShareCode == code })
	if len(notes) == 0 {
		return nil, repository.ErrNotFound
	}
	return notes[0], nil
}

func (m *mockNoteRepository) SetShareCode(ctx context.Context, id, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, note := range m.notes {
		if note.ID != id && note.ShareCode != nil && *note.ShareCode == code {
			return repository.ErrAlreadyExists
		}
	}
	note, ok := m.notes[id]
	if !ok {
		return repository.ErrNotFound
	}
	note.ShareCode = &code
	return nil
}

func (m *mockNoteRepository) ClearFolder(ctx context.Context, ownerID, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, note := range m.notes {
		if note.OwnerID == ownerID && note.FolderID != nil && *note.FolderID == folderID {
			note.FolderID = nil
		}
	}
	return nil
}

func (m *mockNoteRepository) get(id string) domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.notes[id]
}

func (m *mockNoteRepository) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

type mockCollaboratorRepository struct {
	mu     sync.Mutex
	grants map[string]*domain.Collaborator
}

func newMockCollaboratorRepository() *mockCollaboratorRepository {
	return &mockCollaboratorRepository{
		grants: make(map[string]*domain.Collaborator),
	}
}

func (m *mockCollaboratorRepository) Upsert(ctx context.Context, c *domain.Collaborator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.NoteID + "/" + c.UserID
	if existing, ok := m.grants[key]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	copied := *c
	m.grants[key] = &copied
	return nil
}

func (m *mockCollaboratorRepository) Find(ctx context.Context, noteID, userID string) (*domain.Collaborator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if grant, ok := m.grants[noteID+"/"+userID]; ok {
		copied := *grant
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockCollaboratorRepository) ListByNote(ctx context.Context, noteID string) ([]*domain.Collaborator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var grants []*domain.Collaborator
	for _, grant := range m.grants {
		if grant.NoteID == noteID {
			copied := *grant
			grants = append(grants, &copied)
		}
	}
	return grants, nil
}

func (m *mockCollaboratorRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Collaborator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var grants []*domain.Collaborator
	for _, grant := range m.grants {
		if grant.UserID == userID {
			copied := *grant
			grants = append(grants, &copied)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].NoteID < grants[j].NoteID })
	return grants, nil
}

func (m *mockCollaboratorRepository) revoke(noteID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, noteID+"/"+userID)
}

type mockVersionRepository struct {
	mu        sync.Mutex
	versions  []*domain.NoteVersion
	appendErr error
}

func newMockVersionRepository() *mockVersionRepository {
	return &mockVersionRepository{}
}

func (m *mockVersionRepository) Append(ctx context.Context, v *domain.NoteVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	copied := *v
	m.versions = append(m.versions, &copied)
	return nil
}

func (m *mockVersionRepository) ListByNote(ctx context.Context, noteID string, limit int) ([]*domain.NoteVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.NoteVersion
	for i := len(m.versions) - 1; i >= 0; i-- {
		if m.versions[i].NoteID == noteID {
			out = append(out, m.versions[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockVersionRepository) all() []*domain.NoteVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.NoteVersion(nil), m.versions...)
}

type mockFolderRepository struct {
	mu      sync.Mutex
	folders map[string]*domain.Folder
}

func newMockFolderRepository() *mockFolderRepository {
	return &mockFolderRepository{
		folders: make(map[string]*domain.Folder),
	}
}

func (m *mockFolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[folder.ID]; ok {
		return repository.ErrAlreadyExists
	}
	copied := *folder
	m.folders[folder.ID] = &copied
	return nil
}

func (m *mockFolderRepository) FindByID(ctx context.Context, id string) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if folder, ok := m.folders[id]; ok {
		copied := *folder
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockFolderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var folders []*domain.Folder
	for _, folder := range m.folders {
		if folder.OwnerID == ownerID {
			copied := *folder
			folders = append(folders, &copied)
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

func (m *mockFolderRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.folders, id)
	return nil
}
