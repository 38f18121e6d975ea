package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/notify"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/sse"
	"github.com/songon-extension/access-server/internal/storage"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memCodeRepo is an in-memory AccessCodeRepository. Insert holds the lock across the
// uniqueness check, like the unique index does in Postgres.
type memCodeRepo struct {
	mu    sync.Mutex
	codes []*model.AccessCode
	now   func() time.Time
}

func (r *memCodeRepo) Insert(ctx context.Context, p model.CreateAccessCodeParams) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.Code == p.Code {
			return nil, repository.ErrCodeTaken
		}
	}
	ac := &model.AccessCode{
		ID:              p.ID,
		Code:            p.Code,
		ClientName:      p.ClientName,
		ClientEmail:     p.ClientEmail,
		ProfileType:     p.ProfileType,
		ParcelleIDs:     pq.StringArray(slices.Clone(p.ParcelleIDs)),
		ParcelleConfigs: p.ParcelleConfigs,
		ExpiresAt:       p.ExpiresAt,
		CameraEnabled:   p.CameraEnabled,
		VideoURL:        p.VideoURL,
		Active:          true,
		CreatedAt:       r.now(),
	}
	r.codes = append(r.codes, ac)
	out := *ac
	return &out, nil
}

func (r *memCodeRepo) find(match func(*model.AccessCode) bool) *model.AccessCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if match(c) {
			out := *c
			return &out
		}
	}
	return nil
}

func (r *memCodeRepo) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	return r.find(func(c *model.AccessCode) bool { return c.Code == code }), nil
}

func (r *memCodeRepo) FindByID(ctx context.Context, id string) (*model.AccessCode, error) {
	return r.find(func(c *model.AccessCode) bool { return c.ID == id }), nil
}

func (r *memCodeRepo) matching(filter model.AccessCodeFilter) []model.AccessCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.AccessCode{}
	for i := len(r.codes) - 1; i >= 0; i-- {
		c := r.codes[i]
		if filter.ProfileType != "" && c.ProfileType != filter.ProfileType {
			continue
		}
		if filter.ActiveOnly && !c.Active {
			continue
		}
		if filter.ParcelleID != "" && !slices.Contains(c.ParcelleIDs, filter.ParcelleID) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func (r *memCodeRepo) List(ctx context.Context, filter model.AccessCodeFilter) ([]model.AccessCode, error) {
	out := r.matching(filter)
	if filter.Limit > 0 {
		out = out[min(filter.Offset, len(out)):min(filter.Offset+filter.Limit, len(out))]
	}
	return out, nil
}

func (r *memCodeRepo) CountFiltered(ctx context.Context, filter model.AccessCodeFilter) (int, error) {
	return len(r.matching(filter)), nil
}

func (r *memCodeRepo) Revoke(ctx context.Context, id string) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ID != id {
			continue
		}
		if !c.Active {
			return nil, repository.ErrAlreadyRevoked
		}
		at := r.now()
		c.Active = false
		c.RevokedAt = &at
		out := *c
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memCodeRepo) UpdateCamera(ctx context.Context, id string, p model.UpdateCameraParams) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ID == id {
			c.CameraEnabled = p.CameraEnabled
			c.VideoURL = p.VideoURL
			c.ParcelleConfigs = p.ParcelleConfigs
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCodeRepo) Counts(ctx context.Context, now time.Time) (*model.AccessCodeCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := &model.AccessCodeCounts{}
	for _, c := range r.codes {
		counts.Total++
		switch {
		case !c.Active:
			counts.Revoked++
		case c.IsExpired(now):
			counts.Expired++
		default:
			counts.Active++
		}
		if c.ProfileType == model.ProfileProspect {
			counts.Prospects++
		} else {
			counts.Proprietaires++
		}
	}
	return counts, nil
}

// stored returns the row as persisted, without decryption.
func (r *memCodeRepo) stored(id string) *model.AccessCode {
	return r.find(func(c *model.AccessCode) bool { return c.ID == id })
}

type memParcelleRepo struct {
	mu        sync.Mutex
	parcelles map[string]model.Parcelle
}

func newMemParcelleRepo(parcelles ...model.Parcelle) *memParcelleRepo {
	r := &memParcelleRepo{parcelles: map[string]model.Parcelle{}}
	for _, p := range parcelles {
		r.parcelles[p.ID] = p
	}
	return r
}

func (r *memParcelleRepo) FindByID(ctx context.Context, id string) (*model.Parcelle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parcelles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memParcelleRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Parcelle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Parcelle{}
	// Reverse order so callers cannot rely on the lookup order.
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := r.parcelles[ids[i]]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memParcelleRepo) List(ctx context.Context, statut model.ParcelleStatut) ([]model.Parcelle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Parcelle{}
	for _, p := range r.parcelles {
		if statut == "" || p.Statut == statut {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nom < out[j].Nom })
	return out, nil
}

func (r *memParcelleRepo) Upsert(ctx context.Context, p model.UpsertParcelleParams) (*model.Parcelle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parcelle := model.Parcelle{
		ID:              p.ID,
		Nom:             p.Nom,
		ReferenceTF:     p.ReferenceTF,
		Superficie:      p.Superficie,
		UniteSuperficie: p.UniteSuperficie,
		Statut:          p.Statut,
	}
	r.parcelles[p.ID] = parcelle
	return &parcelle, nil
}

func (r *memParcelleRepo) UpdateStatut(ctx context.Context, id string, statut model.ParcelleStatut) (*model.Parcelle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parcelles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Statut = statut
	r.parcelles[id] = p
	return &p, nil
}

func (r *memParcelleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parcelles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.parcelles, id)
	return nil
}

type memDocumentRepo struct {
	mu         sync.Mutex
	docs       []model.DocumentFile
	seq        int64
	failCreate error
}

func (r *memDocumentRepo) Create(ctx context.Context, p model.CreateDocumentFileParams) (*model.DocumentFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return nil, r.failCreate
	}
	r.seq++
	doc := model.DocumentFile{
		ID:           p.ID,
		ParcelleID:   p.ParcelleID,
		DocumentType: p.DocumentType,
		Filename:     p.Filename,
		OriginalName: p.OriginalName,
		ContentType:  p.ContentType,
		SizeBytes:    p.SizeBytes,
		Checksum:     p.Checksum,
		Seq:          r.seq,
	}
	r.docs = append(r.docs, doc)
	return &doc, nil
}

func (r *memDocumentRepo) FindByID(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ParcelleID == parcelleID && d.ID == id {
			return &d, nil
		}
	}
	return nil, nil
}

func (r *memDocumentRepo) filter(match func(model.DocumentFile) bool) []model.DocumentFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.DocumentFile{}
	for _, d := range r.docs {
		if match(d) {
			out = append(out, d)
		}
	}
	return out
}

func (r *memDocumentRepo) ListByParcelle(ctx context.Context, parcelleID string) ([]model.DocumentFile, error) {
	return r.filter(func(d model.DocumentFile) bool { return d.ParcelleID == parcelleID }), nil
}

func (r *memDocumentRepo) ListByType(ctx context.Context, parcelleID, documentType string) ([]model.DocumentFile, error) {
	return r.filter(func(d model.DocumentFile) bool {
		return d.ParcelleID == parcelleID && d.DocumentType == documentType
	}), nil
}

func (r *memDocumentRepo) Summaries(ctx context.Context, parcelleID string) ([]model.DocumentSummary, error) {
	out := []model.DocumentSummary{}
	index := map[string]int{}
	for _, d := range r.filter(func(d model.DocumentFile) bool { return d.ParcelleID == parcelleID }) {
		i, ok := index[d.DocumentType]
		if !ok {
			i = len(out)
			index[d.DocumentType] = i
			out = append(out, model.DocumentSummary{Type: d.DocumentType, Label: model.DocumentLabel(d.DocumentType)})
		}
		out[i].Count++
	}
	return out, nil
}

func (r *memDocumentRepo) Delete(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.docs {
		if d.ParcelleID == parcelleID && d.ID == id {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memAccessLogRepo struct {
	mu         sync.Mutex
	entries    []model.AccessLogEntry
	failInsert error
}

func (r *memAccessLogRepo) Insert(ctx context.Context, e model.AccessLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return r.failInsert
	}
	e.Seq = int64(len(r.entries) + 1)
	r.entries = append(r.entries, e)
	return nil
}

func (r *memAccessLogRepo) List(ctx context.Context, since *time.Time) ([]model.AccessLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.AccessLogEntry{}
	for _, e := range r.entries {
		if since == nil || e.Timestamp.After(*since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAccessLogRepo) Recent(ctx context.Context, limit int, since *time.Time) ([]model.AccessLogEntry, error) {
	all, _ := r.List(ctx, since)
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memAccessLogRepo) Stats(ctx context.Context) (*model.AccessLogStats, error) {
	all, _ := r.List(ctx, nil)
	stats := &model.AccessLogStats{
		Total:      len(all),
		ByClient:   map[string]int{},
		ByParcelle: map[string]int{},
	}
	for _, e := range all {
		stats.ByClient[e.ClientName]++
		stats.ByParcelle[e.ParcelleID]++
	}
	return stats, nil
}

func (r *memAccessLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	downloads int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Upload(ctx context.Context, path string, r io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.objects[path] = data
	s.mu.Unlock()
	sum := sha256.Sum256(data)
	return &storage.UploadResult{Path: path, Size: int64(len(data)), Checksum: hex.EncodeToString(sum[:])}, nil
}

func (s *memStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	data, ok := s.objects[path]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.objects, path)
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

func (s *memStorage) downloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

type mockEmailSender struct {
	mock.Mock
}

func (m *mockEmailSender) Send(ctx context.Context, email notify.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event sse.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pdfBytes assembles a blank A4 page with a valid cross-reference table.
func pdfBytes(t *testing.T) []byte {
	t.Helper()
	content := "BT /F1 12 Tf 72 720 Td (Plan de bornage) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
