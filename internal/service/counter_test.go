package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/modelforge/waitlist/internal/metrics"
	"github.com/modelforge/waitlist/internal/model"
	"github.com/modelforge/waitlist/internal/store"
	"github.com/modelforge/waitlist/internal/store/filestore"
	"github.com/modelforge/waitlist/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	counts []int64
}

func (n *recordingNotifier) Notify(count int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts = append(n.counts, count)
}

func (n *recordingNotifier) Counts() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.counts...)
}

// failingStore fails every call with err.
type failingStore struct {
	err   error
	calls int
}

func (s *failingStore) TryAddSignup(ctx context.Context, email string) (store.AddResult, error) {
	s.calls++
	return store.AddResult{}, s.err
}

func (s *failingStore) GetCount(ctx context.Context) (int64, error) {
	s.calls++
	return 0, s.err
}

func (s *failingStore) ListSignups(ctx context.Context) ([]model.SignupRecord, error) {
	s.calls++
	return nil, s.err
}

func (s *failingStore) Ping(ctx context.Context) error { return s.err }
func (s *failingStore) Close() error                   { return nil }

func newFileService(t *testing.T) (*CounterService, *recordingNotifier, *metrics.InMemoryRecorder) {
	t.Helper()

	st, err := filestore.Open(filepath.Join(t.TempDir(), "emails.json"), model.DefaultSeedCount, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	notifier := &recordingNotifier{}
	rec := metrics.NewInMemory()
	return NewCounterService(st, notifier, testutil.DiscardLogger(), rec), notifier, rec
}

func TestSubmitEmailScenario(t *testing.T) {
	ctx := context.Background()
	svc, notifier, rec := newFileService(t)

	res, err := svc.SubmitEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if res.Count != 1248 {
		t.Fatalf("count = %d, want 1248", res.Count)
	}

	res, err = svc.SubmitEmail(ctx, "a@x.com")
	if !errors.Is(err, ErrDuplicateSignup) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateSignup", err)
	}
	if res.Count != 1248 {
		t.Fatalf("duplicate count = %d, want 1248", res.Count)
	}

	res, err = svc.SubmitEmail(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if res.Count != 1249 {
		t.Fatalf("count = %d, want 1249", res.Count)
	}

	count, err := svc.GetCurrentCount(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCount failed: %v", err)
	}
	if count != 1249 {
		t.Fatalf("current count = %d, want 1249", count)
	}

	// Exactly one notification per accepted signup, none for the duplicate.
	got := notifier.Counts()
	if len(got) != 2 || got[0] != 1248 || got[1] != 1249 {
		t.Fatalf("notifications = %v, want [1248 1249]", got)
	}

	snap := rec.Snapshot()
	if snap.SignupsAccepted != 2 || snap.SignupsDuplicate != 1 {
		t.Errorf("metrics accepted=%d duplicate=%d, want 2 and 1", snap.SignupsAccepted, snap.SignupsDuplicate)
	}
	if snap.SignupDurationCount != 3 {
		t.Errorf("duration observations = %d, want 3", snap.SignupDurationCount)
	}
}

func TestSubmitEmailInvalidLeavesStoreUntouched(t *testing.T) {
	st := &failingStore{err: errors.New("must not be called")}
	notifier := &recordingNotifier{}
	rec := metrics.NewInMemory()
	svc := NewCounterService(st, notifier, testutil.DiscardLogger(), rec)

	_, err := svc.SubmitEmail(context.Background(), "not-an-email")
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}
	if st.calls != 0 {
		t.Errorf("store called %d times, want 0", st.calls)
	}
	if len(notifier.Counts()) != 0 {
		t.Error("invalid email must not notify")
	}
	if rec.Snapshot().SignupsInvalid != 1 {
		t.Errorf("invalid metric = %d, want 1", rec.Snapshot().SignupsInvalid)
	}
}

func TestSubmitEmailInvalidDoesNotChangeCount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFileService(t)

	if _, err := svc.SubmitEmail(ctx, "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}

	count, err := svc.GetCurrentCount(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCount failed: %v", err)
	}
	if count != model.DefaultSeedCount {
		t.Errorf("count = %d, want %d", count, model.DefaultSeedCount)
	}
}

func TestSubmitEmailStoreUnavailable(t *testing.T) {
	st := &failingStore{err: fmt.Errorf("%w: disk full", store.ErrStorageUnavailable)}
	notifier := &recordingNotifier{}
	rec := metrics.NewInMemory()
	svc := NewCounterService(st, notifier, testutil.DiscardLogger(), rec)

	_, err := svc.SubmitEmail(context.Background(), "a@x.com")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if len(notifier.Counts()) != 0 {
		t.Error("failed write must not notify")
	}
	if rec.Snapshot().SignupsUnavailable != 1 {
		t.Errorf("unavailable metric = %d, want 1", rec.Snapshot().SignupsUnavailable)
	}

	if _, err := svc.GetCurrentCount(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("GetCurrentCount err = %v, want ErrServiceUnavailable", err)
	}
	if _, err := svc.ListSignups(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("ListSignups err = %v, want ErrServiceUnavailable", err)
	}
}

func TestSubmitEmailWithoutNotifier(t *testing.T) {
	st, err := filestore.Open(filepath.Join(t.TempDir(), "emails.json"), 10, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := NewCounterService(st, nil, testutil.DiscardLogger(), nil)

	res, err := svc.SubmitEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Count != 11 {
		t.Errorf("count = %d, want 11", res.Count)
	}
}

func TestSubmitEmailConcurrentDistinct(t *testing.T) {
	ctx := context.Background()
	svc, notifier, _ := newFileService(t)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.SubmitEmail(ctx, fmt.Sprintf("user%d@example.com", i)); err != nil {
				t.Errorf("submit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := svc.GetCurrentCount(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCount failed: %v", err)
	}
	if count != model.DefaultSeedCount+n {
		t.Errorf("count = %d, want %d", count, model.DefaultSeedCount+n)
	}
	if got := len(notifier.Counts()); got != n {
		t.Errorf("notifications = %d, want %d", got, n)
	}
}

func TestListSignups(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFileService(t)

	for _, email := range []string{"first@example.com", "second@example.com"} {
		if _, err := svc.SubmitEmail(ctx, email); err != nil {
			t.Fatalf("submit %s failed: %v", email, err)
		}
	}

	list, err := svc.ListSignups(ctx)
	if err != nil {
		t.Fatalf("ListSignups failed: %v", err)
	}
	if list.Count != 1249 {
		t.Errorf("count = %d, want 1249", list.Count)
	}
	if len(list.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(list.Entries))
	}
	if list.Entries[0].Email != "second@example.com" {
		t.Errorf("first entry = %q, want most recent first", list.Entries[0].Email)
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple", "a@x.com", true},
		{"plus tag", "jane.doe+waitlist@example.co.uk", true},
		{"mixed case kept", "Alice@Example.com", true},
		{"empty", "", false},
		{"no at", "not-an-email", false},
		{"no local part", "@x.com", false},
		{"no domain", "a@", false},
		{"dotless domain", "a@localhost", false},
		{"trailing dot", "a@x.", false},
		{"leading space", " a@x.com", false},
		{"trailing newline", "a@x.com\n", false},
		{"inner space", "a b@x.com", false},
		{"too long", string(make([]byte, 250)) + "@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.valid && err != nil {
				t.Fatalf("ValidateEmail(%q) = %v, want nil", tt.email, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidEmail) {
				t.Fatalf("ValidateEmail(%q) = %v, want ErrInvalidEmail", tt.email, err)
			}
		})
	}
}
