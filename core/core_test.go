package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memRequestStore is an in-memory Request Ledger used across the package
// tests. It enforces the same status transitions as the SQL store.
type memRequestStore struct {
	mu      sync.Mutex
	nextID  int
	rows    map[string]ExportRequest
	nowFn   func() time.Time
	failure error
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{
		rows:  map[string]ExportRequest{},
		nowFn: func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (m *memRequestStore) Create(_ context.Context, in CreateExportRequestInput) (ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return ExportRequest{}, m.failure
	}
	m.nextID++
	now := m.nowFn()
	req := ExportRequest{
		ID:            fmt.Sprintf("req-%d", m.nextID),
		Sender:        in.Sender,
		Type:          in.Type,
		Status:        RequestStatusPending,
		ReferenceDate: in.ReferenceDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.rows[req.ID] = req
	return req, nil
}

func (m *memRequestStore) Get(_ context.Context, id string) (ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return ExportRequest{}, m.failure
	}
	req, ok := m.rows[id]
	if !ok {
		return ExportRequest{}, ErrExportRequestNotFound
	}
	return req, nil
}

func (m *memRequestStore) FindActive(_ context.Context, key DedupKey) (ExportRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return ExportRequest{}, false, m.failure
	}
	var latest ExportRequest
	found := false
	for _, req := range m.sortedLocked() {
		if req.DedupKey() == key && req.Status != RequestStatusFailed {
			latest = req
			found = true
		}
	}
	return latest, found, nil
}

func (m *memRequestStore) FindLatestCompleted(_ context.Context, key DedupKey, excludeID string) (ExportRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return ExportRequest{}, false, m.failure
	}
	var latest ExportRequest
	found := false
	for _, req := range m.sortedLocked() {
		if req.ID == excludeID {
			continue
		}
		if req.DedupKey() == key && req.Status == RequestStatusCompleted {
			latest = req
			found = true
		}
	}
	return latest, found, nil
}

func (m *memRequestStore) ClaimPending(_ context.Context, id string) (ExportRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return ExportRequest{}, false, m.failure
	}
	req, ok := m.rows[id]
	if !ok {
		return ExportRequest{}, false, ErrExportRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return req, false, nil
	}
	req.Status = RequestStatusProcessing
	req.UpdatedAt = m.nowFn()
	m.rows[id] = req
	return req, true, nil
}

func (m *memRequestStore) SetArtifact(_ context.Context, id string, ref ArtifactRef) (ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.rows[id]
	if !ok {
		return ExportRequest{}, ErrExportRequestNotFound
	}
	if req.UploadURL != "" && req.UploadURL != ref.UploadURL {
		return ExportRequest{}, ErrUploadURLAlreadySet
	}
	req.UploadURL = ref.UploadURL
	req.SignedURL = ref.SignedURL
	req.UpdatedAt = m.nowFn()
	m.rows[id] = req
	return req, nil
}

func (m *memRequestStore) MarkCompleted(_ context.Context, id string, signedURL string) (ExportRequest, error) {
	return m.settle(id, RequestStatusCompleted, func(req *ExportRequest) {
		req.SignedURL = signedURL
	})
}

func (m *memRequestStore) MarkDeliveryFailed(_ context.Context, id string, cause string) (ExportRequest, error) {
	return m.settle(id, RequestStatusFailed, func(req *ExportRequest) {
		req.ErrorAPI = cause
	})
}

func (m *memRequestStore) MarkInternalFailure(_ context.Context, id string, cause string) (ExportRequest, error) {
	return m.settle(id, RequestStatusFailed, func(req *ExportRequest) {
		req.InternalError = cause
	})
}

func (m *memRequestStore) settle(id string, status RequestStatus, mutate func(*ExportRequest)) (ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.rows[id]
	if !ok {
		return ExportRequest{}, ErrExportRequestNotFound
	}
	if err := req.TransitionTo(status, m.nowFn()); err != nil {
		return ExportRequest{}, err
	}
	mutate(&req)
	m.rows[id] = req
	return req, nil
}

func (m *memRequestStore) ListSweepable(_ context.Context, cutoff time.Time, limit int) ([]ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ExportRequest{}
	for _, req := range m.sortedLocked() {
		if req.Swept || req.UploadURL == "" {
			continue
		}
		if !req.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, req)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memRequestStore) MarkSwept(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.rows[id]
	if !ok {
		return ErrExportRequestNotFound
	}
	req.Swept = true
	m.rows[id] = req
	return nil
}

func (m *memRequestStore) sortedLocked() []ExportRequest {
	out := make([]ExportRequest, 0, len(m.rows))
	for _, req := range m.rows {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRequestStore) mustGet(id string) ExportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

type stubEnqueuer struct {
	mu       sync.Mutex
	messages []*ExportJobMessage
	err      error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, msg *ExportJobMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type stubArtifactStore struct {
	uploads    map[string]string
	signErr    error
	uploadErr  error
	existing   map[string]bool
	signedURLs int
}

func newStubArtifactStore() *stubArtifactStore {
	return &stubArtifactStore{uploads: map[string]string{}, existing: map[string]bool{}}
}

func (s *stubArtifactStore) Upload(_ context.Context, localPath, objectKey string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads[objectKey] = localPath
	s.existing[objectKey] = true
	return "https://storage.test/exports/" + objectKey, nil
}

func (s *stubArtifactStore) SignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	s.signedURLs++
	return fmt.Sprintf("https://storage.test/exports/%s?sig=%d", objectKey, s.signedURLs), nil
}

func (s *stubArtifactStore) Delete(_ context.Context, objectKey string) (bool, error) {
	if !s.existing[objectKey] {
		return false, nil
	}
	delete(s.existing, objectKey)
	delete(s.uploads, objectKey)
	return true, nil
}

func (s *stubArtifactStore) Exists(_ context.Context, objectKey string) (bool, error) {
	return s.existing[objectKey], nil
}

func (s *stubArtifactStore) RelativeObjectPath(uploadURL string) (string, error) {
	const prefix = "https://storage.test/exports/"
	if len(uploadURL) <= len(prefix) || uploadURL[:len(prefix)] != prefix {
		return "", fmt.Errorf("unexpected upload url %q", uploadURL)
	}
	return uploadURL[len(prefix):], nil
}

type stubNotifier struct {
	mu      sync.Mutex
	calls   []string
	senders []SenderRef
	err     error
}

func (s *stubNotifier) Notify(_ context.Context, sender SenderRef, signedURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, signedURL)
	s.senders = append(s.senders, sender)
	return nil
}

type stubBuilder struct {
	reportType ReportType
	buildFn    func(ctx context.Context, req ExportRequest) (string, error)
}

func (s stubBuilder) Type() ReportType { return s.reportType }

func (s stubBuilder) Build(ctx context.Context, req ExportRequest) (string, error) {
	if s.buildFn != nil {
		return s.buildFn(ctx, req)
	}
	return "", fmt.Errorf("no build function")
}

func testSenderRef() SenderRef {
	return SenderRef{
		ID:         "sender-1",
		Name:       "Acme Capital",
		APIKey:     "acme-key",
		WebhookURL: "https://acme.test/hooks/exports",
	}
}
