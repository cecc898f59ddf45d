package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNumberStore struct {
	existing map[string]bool // "number|company"
	err      error
	calls    int
}

func (f *fakeNumberStore) ReceiptNumberExists(_ context.Context, number, companyID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.existing[number+"|"+companyID], nil
}

func TestCheckExistsScopedToCompany(t *testing.T) {
	store := &fakeNumberStore{existing: map[string]bool{"A-1|company-x": true}}
	checker := NewDuplicateChecker(store, nil)

	assert.True(t, checker.CheckExists(context.Background(), "A-1", "company-x").Exists)
	assert.False(t, checker.CheckExists(context.Background(), "A-1", "company-y").Exists,
		"same number in another company is not a duplicate")
	assert.False(t, checker.CheckExists(context.Background(), "A-2", "company-x").Exists)
}

func TestCheckExistsEmptyInputs(t *testing.T) {
	store := &fakeNumberStore{existing: map[string]bool{"A-1|company-x": true}}
	checker := NewDuplicateChecker(store, nil)

	assert.False(t, checker.CheckExists(context.Background(), "", "company-x").Exists)
	assert.False(t, checker.CheckExists(context.Background(), "A-1", "").Exists)
	assert.Zero(t, store.calls, "empty inputs never hit the store")
}

func TestCheckExistsSwallowsStoreErrors(t *testing.T) {
	store := &fakeNumberStore{err: errors.New("connection refused")}
	checker := NewDuplicateChecker(store, nil)

	result := checker.CheckExists(context.Background(), "A-1", "company-x")
	assert.False(t, result.Exists, "advisory check degrades to no-duplicate on store failure")
}
