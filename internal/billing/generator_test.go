package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"siakad/internal/roster"
)

// fakeStore mirrors the partial unique index: at most one non-cancelled
// bill per (student, title).
type fakeStore struct {
	mu      sync.Mutex
	bills   []Bill
	failFor map[string]error
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{failFor: make(map[string]error)}
}

func (f *fakeStore) CreateBill(_ context.Context, b Bill) (Bill, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[b.StudentID]; err != nil {
		return Bill{}, false, err
	}
	for _, existing := range f.bills {
		if existing.StudentID == b.StudentID && existing.Title == b.Title && existing.Status != StatusCancelled {
			return Bill{}, false, nil
		}
	}
	f.seq++
	b.ID = fmt.Sprintf("bill-%d", f.seq)
	b.CreatedAt = time.Now()
	f.bills = append(f.bills, b)
	return b, true, nil
}

func (f *fakeStore) UnpaidBills(_ context.Context) ([]Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Bill
	for _, b := range f.bills {
		if b.Status == StatusUnpaid {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) cancelAll(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bills {
		if f.bills[i].Title == title {
			f.bills[i].Status = StatusCancelled
		}
	}
}

type fakePopulation struct {
	students []roster.Student
}

func (f *fakePopulation) ActiveStudents(_ context.Context, target roster.Target) ([]roster.Student, error) {
	var out []roster.Student
	for _, s := range f.students {
		switch target.Type {
		case roster.TargetClass:
			if s.ClassName != target.Value {
				continue
			}
		case roster.TargetLevel:
			if len(s.ClassName) == 0 || len(target.Value) > len(s.ClassName) || s.ClassName[:len(target.Value)] != target.Value {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func billingSetup() (*Service, *fakeStore) {
	store := newFakeStore()
	pop := &fakePopulation{students: []roster.Student{
		{ID: "s1", ClassName: "7A", Active: true},
		{ID: "s2", ClassName: "7B", Active: true},
		{ID: "s3", ClassName: "8A", Active: true},
	}}
	return NewService(store, pop), store
}

func marchDef() CycleDefinition {
	return CycleDefinition{
		Title:   "SPP Maret 2025",
		Amount:  150000,
		DueDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Target:  roster.Target{Type: roster.TargetAll},
	}
}

func TestGenerateCycleCreatesOneBillPerStudent(t *testing.T) {
	svc, store := billingSetup()

	res, err := svc.GenerateCycle(context.Background(), marchDef())
	assert.NoError(t, err)
	assert.Equal(t, CycleResult{Title: "SPP Maret 2025", Created: 3}, res)
	assert.Len(t, store.bills, 3)
	for _, b := range store.bills {
		assert.Equal(t, StatusUnpaid, b.Status)
		assert.Equal(t, int64(150000), b.Amount)
	}
}

func TestGenerateCycleRerunSkipsEveryone(t *testing.T) {
	svc, store := billingSetup()
	ctx := context.Background()

	_, err := svc.GenerateCycle(ctx, marchDef())
	assert.NoError(t, err)

	res, err := svc.GenerateCycle(ctx, marchDef())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, store.bills, 3)
}

func TestGenerateCycleCancelledBillsDoNotBlock(t *testing.T) {
	svc, store := billingSetup()
	ctx := context.Background()

	_, err := svc.GenerateCycle(ctx, marchDef())
	assert.NoError(t, err)
	store.cancelAll("SPP Maret 2025")

	res, err := svc.GenerateCycle(ctx, marchDef())
	assert.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Skipped)
}

func TestGenerateCycleIsolatesPerStudentFailures(t *testing.T) {
	svc, store := billingSetup()
	store.failFor["s2"] = fmt.Errorf("connection reset")

	res, err := svc.GenerateCycle(context.Background(), marchDef())
	assert.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, store.bills, 2)
}

func TestGenerateCycleTargetFilters(t *testing.T) {
	svc, _ := billingSetup()
	ctx := context.Background()

	def := marchDef()
	def.Target = roster.Target{Type: roster.TargetClass, Value: "7A"}
	res, err := svc.GenerateCycle(ctx, def)
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	def.Title = "Gedung 2025"
	def.Target = roster.Target{Type: roster.TargetLevel, Value: "7"}
	res, err = svc.GenerateCycle(ctx, def)
	assert.NoError(t, err)
	assert.Equal(t, 2, res.Created)
}

func TestGenerateCycleValidation(t *testing.T) {
	svc, _ := billingSetup()
	ctx := context.Background()

	def := marchDef()
	def.Title = ""
	_, err := svc.GenerateCycle(ctx, def)
	assert.Error(t, err)

	def = marchDef()
	def.Amount = 0
	_, err = svc.GenerateCycle(ctx, def)
	assert.Error(t, err)

	def = marchDef()
	def.DueDate = time.Time{}
	_, err = svc.GenerateCycle(ctx, def)
	assert.Error(t, err)
}

func TestGenerateCycleConcurrentRuns(t *testing.T) {
	svc, store := billingSetup()

	const n = 8
	results := make([]CycleResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.GenerateCycle(context.Background(), marchDef())
		}(i)
	}
	wg.Wait()

	totalCreated := 0
	for _, r := range results {
		totalCreated += r.Created
	}
	assert.Equal(t, 3, totalCreated)
	assert.Len(t, store.bills, 3)
}
