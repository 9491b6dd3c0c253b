package fusion_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

type fakeTaskRepo struct {
	mu        sync.Mutex
	tasks     map[string]*domain.ImportTask
	order     []string
	history   map[string][]domain.TaskStatus
	createErr error
	getErr    error
}

func newFakeTaskRepo(tasks ...domain.ImportTask) *fakeTaskRepo {
	repo := &fakeTaskRepo{tasks: map[string]*domain.ImportTask{}, history: map[string][]domain.TaskStatus{}}
	for _, task := range tasks {
		_ = repo.Create(context.Background(), task)
	}
	return repo
}

func (f *fakeTaskRepo) Create(ctx context.Context, task domain.ImportTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	t := task
	f.tasks[t.ID] = &t
	f.order = append(f.order, t.ID)
	f.history[t.ID] = []domain.TaskStatus{t.Status}
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, taskID string) (*domain.ImportTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskRepo) List(ctx context.Context, creatorID string, page, size int) (domain.TaskPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.ImportTask
	for i := len(f.order) - 1; i >= 0; i-- {
		t := f.tasks[f.order[i]]
		if creatorID != "" && t.CreatorID() != creatorID {
			continue
		}
		all = append(all, *t)
	}
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return domain.TaskPage{Items: all[start:end], Total: int64(len(all)), Page: page, Size: size}, nil
}

func (f *fakeTaskRepo) ListRecoverable(ctx context.Context, limit int) ([]domain.ImportTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ImportTask
	for _, id := range f.order {
		if t := f.tasks[id]; !t.Status.IsTerminal() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) move(taskID string, next domain.TaskStatus) (*domain.ImportTask, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if !t.Status.CanTransitionTo(next) {
		return nil, domain.ErrInvalidTransition
	}
	t.Status = next
	f.history[taskID] = append(f.history[taskID], next)
	return t, nil
}

func (f *fakeTaskRepo) Transition(ctx context.Context, taskID string, next domain.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.move(taskID, next)
	return err
}

func (f *fakeTaskRepo) SaveOriginalText(ctx context.Context, taskID string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.OriginalText = text
	return nil
}

func (f *fakeTaskRepo) Complete(ctx context.Context, taskID string, extractCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.move(taskID, domain.TaskStatusSuccess)
	if err != nil {
		return err
	}
	t.ExtractCount = extractCount
	return nil
}

func (f *fakeTaskRepo) Fail(ctx context.Context, taskID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.move(taskID, domain.TaskStatusFailed)
	if err != nil {
		return err
	}
	t.ErrorMessage = &reason
	return nil
}

func (f *fakeTaskRepo) get(taskID string) domain.ImportTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tasks[taskID]
}

func (f *fakeTaskRepo) statuses(taskID string) []domain.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TaskStatus(nil), f.history[taskID]...)
}

type fakePersonRepo struct {
	mu        sync.Mutex
	persons   map[string]domain.Person
	findCalls int
	findErr   error
}

func newFakePersonRepo(persons ...domain.Person) *fakePersonRepo {
	repo := &fakePersonRepo{persons: map[string]domain.Person{}}
	for _, p := range persons {
		repo.persons[p.ID] = p
	}
	return repo
}

// FindByIdentity returns every identity match regardless of visibility.
func (f *fakePersonRepo) FindByIdentity(ctx context.Context, identity domain.Identity, viewerID string) ([]domain.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []domain.Person
	for _, p := range f.persons {
		if domain.NormalizeToken(p.Name) == domain.NormalizeToken(identity.Name) &&
			p.BirthDate == domain.NormalizeBirthDate(identity.BirthDate) &&
			domain.NormalizeToken(p.Gender) == domain.NormalizeToken(identity.Gender) &&
			domain.NormalizeToken(p.Nationality) == domain.NormalizeToken(identity.Nationality) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePersonRepo) GetVisibleByIDs(ctx context.Context, personIDs []string, viewerID string) ([]domain.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Person
	for _, id := range personIDs {
		if p, ok := f.persons[id]; ok && p.VisibleTo(viewerID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePersonRepo) upsert(p domain.Person) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persons[p.ID] = p
}

func (f *fakePersonRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.persons)
}

type fakeResultRepo struct {
	mu        sync.Mutex
	results   map[string]domain.ExtractResult
	matches   []domain.SimilarMatch
	persons   *fakePersonRepo
	saveErr   error
	importErr map[string]error
	// beforeSave runs outside the lock so a test can hold a worker inside the bulk write.
	beforeSave func()
}

func newFakeResultRepo(persons *fakePersonRepo, results ...domain.ExtractResult) *fakeResultRepo {
	repo := &fakeResultRepo{results: map[string]domain.ExtractResult{}, persons: persons, importErr: map[string]error{}}
	for _, r := range results {
		repo.results[r.ID] = r
	}
	return repo
}

func (f *fakeResultRepo) SaveExtraction(ctx context.Context, taskID string, results []domain.ExtractResult, matches []domain.SimilarMatch) error {
	if f.beforeSave != nil {
		f.beforeSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, r := range results {
		f.results[r.ID] = r
	}
	f.matches = append(f.matches, matches...)
	return nil
}

func (f *fakeResultRepo) ListByTask(ctx context.Context, taskID string) ([]domain.ExtractResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExtractResult
	for _, r := range f.results {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (f *fakeResultRepo) ListMatchesByTask(ctx context.Context, taskID string) ([]domain.SimilarMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SimilarMatch
	for _, m := range f.matches {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) GetByIDs(ctx context.Context, resultIDs []string) ([]domain.ExtractResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExtractResult
	for _, id := range resultIDs {
		if r, ok := f.results[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ImportPerson(ctx context.Context, resultID string, person domain.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.importErr[resultID]; err != nil {
		return err
	}
	r, ok := f.results[resultID]
	if !ok {
		return domain.ErrResultNotFound
	}
	if r.Imported {
		return domain.ErrAlreadyImported
	}
	r.Confirmed = true
	r.Imported = true
	id := person.ID
	r.ImportedPersonID = &id
	f.results[resultID] = r
	f.persons.upsert(person)
	return nil
}

func (f *fakeResultRepo) get(resultID string) domain.ExtractResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[resultID]
}

func (f *fakeResultRepo) allMatches() []domain.SimilarMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SimilarMatch(nil), f.matches...)
}

type fakeTagRepo struct {
	tags []domain.Tag
	err  error
}

func (f *fakeTagRepo) List(ctx context.Context) ([]domain.Tag, error) {
	return f.tags, f.err
}

type fakeBlobStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	putErr error
	getErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.blobs[path] = data
	return path, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.blobs[path]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[path]
	return ok
}

type fakeParser struct {
	mu    sync.Mutex
	doc   domain.ParsedDocument
	err   error
	calls int
}

func (f *fakeParser) Parse(ctx context.Context, data []byte, fileType domain.FileType) (domain.ParsedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.ParsedDocument{}, f.err
	}
	return f.doc, nil
}

func (f *fakeParser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	fn    func(text string) (*domain.Extraction, error)
}

func (f *fakeExtractor) ExtractOne(ctx context.Context, text, sourceFileName string, vocabulary []domain.Tag) (*domain.Extraction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(text)
}

type fakeQueue struct {
	mu         sync.Mutex
	dispatched []string
	err        error
	ch         chan string
}

func (f *fakeQueue) Dispatch(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, taskID)
	if f.ch != nil {
		f.ch <- taskID
	}
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context) (string, error) {
	if f.ch == nil {
		<-ctx.Done()
		return "", ctx.Err()
	}
	select {
	case id := <-f.ch:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeQueue) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dispatched...)
}

func extraction(fields domain.ExtractedFields) *domain.Extraction {
	raw, _ := json.Marshal(fields)
	return &domain.Extraction{Fields: fields, Raw: raw}
}

var errBoom = errors.New("boom")
