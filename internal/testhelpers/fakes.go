package testhelpers

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/llm"
	"github.com/safetrace/safetrace/internal/storage"
)

// ========================================
// Fake Completion Client
// ========================================

// FakeLLM implements llm.Client with canned responses and call counting
type FakeLLM struct {
	mu sync.Mutex

	// JSONResponse is returned by CompleteJSON when JSONErr is nil
	JSONResponse string
	JSONErr      error

	// JSONBarrier, when set, blocks CompleteJSON until the channel is
	// closed. Lets a test hold a completion in flight while it drives
	// a competing caller.
	JSONBarrier chan struct{}

	// ImageResponse is returned by CompleteWithImage when ImageErr is nil
	ImageResponse string
	ImageErr      error

	JSONCalls  int
	ImageCalls int

	// LastJSONRequest records the most recent CompleteJSON call
	LastJSONRequest llm.JSONRequest
}

// CompleteJSON returns the canned JSON response
func (f *FakeLLM) CompleteJSON(ctx context.Context, req llm.JSONRequest) (string, error) {
	f.mu.Lock()
	f.JSONCalls++
	f.LastJSONRequest = req
	barrier, response, err := f.JSONBarrier, f.JSONResponse, f.JSONErr
	f.mu.Unlock()

	if barrier != nil {
		<-barrier
	}
	if err != nil {
		return "", err
	}
	return response, nil
}

// CompleteWithImage returns the canned image response
func (f *FakeLLM) CompleteWithImage(ctx context.Context, model, prompt, dataURL string, maxTokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ImageCalls++
	if f.ImageErr != nil {
		return "", f.ImageErr
	}
	return f.ImageResponse, nil
}

// CallCount returns the total number of completion calls made
func (f *FakeLLM) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.JSONCalls + f.ImageCalls
}

// ========================================
// Fake Notifier
// ========================================

// FakeNotifier implements notify.Notifier and records calls
type FakeNotifier struct {
	mu sync.Mutex

	AnalysisCalls []string // stage names
	ReportCalls   []string // report numbers
	ClosedCalls   []string // incident numbers
}

// AnalysisCompleted records the stage name
func (f *FakeNotifier) AnalysisCompleted(incident *database.Incident, stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AnalysisCalls = append(f.AnalysisCalls, stage)
}

// ReportGenerated records the report number
func (f *FakeNotifier) ReportGenerated(incident *database.Incident, reportNumber string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReportCalls = append(f.ReportCalls, reportNumber)
}

// IncidentClosed records the incident number
func (f *FakeNotifier) IncidentClosed(incident *database.Incident) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ClosedCalls = append(f.ClosedCalls, incident.IncidentNumber)
}

// ========================================
// In-Memory Object Store
// ========================================

// MemoryStore implements storage.ObjectStore in memory
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory object store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload stores the object bytes under key
func (m *MemoryStore) Upload(ctx context.Context, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

// Download returns a reader over the stored bytes
func (m *MemoryStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Delete removes the object at key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored objects
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
