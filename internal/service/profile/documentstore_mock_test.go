package profile

import (
	"context"

	"github.com/heartmarshall/labsim/internal/docstore"
)

var _ documentStore = &documentStoreMock{}

// documentStoreMock fails loudly when an unset method is called.
type documentStoreMock struct {
	GetFunc    func(ctx context.Context, ref docstore.Ref) (*docstore.Document, error)
	MergeFunc  func(ctx context.Context, ref docstore.Ref, data map[string]any) error
	UpdateFunc func(ctx context.Context, ref docstore.Ref, updates ...docstore.Update) error
	MutateFunc func(ctx context.Context, ref docstore.Ref, fn docstore.MutateFunc) error
	QueryFunc  func(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
}

func (m *documentStoreMock) Get(ctx context.Context, ref docstore.Ref) (*docstore.Document, error) {
	if m.GetFunc == nil {
		panic("documentStoreMock.GetFunc: method is nil but documentStore.Get was just called")
	}
	return m.GetFunc(ctx, ref)
}

func (m *documentStoreMock) Merge(ctx context.Context, ref docstore.Ref, data map[string]any) error {
	if m.MergeFunc == nil {
		panic("documentStoreMock.MergeFunc: method is nil but documentStore.Merge was just called")
	}
	return m.MergeFunc(ctx, ref, data)
}

func (m *documentStoreMock) Update(ctx context.Context, ref docstore.Ref, updates ...docstore.Update) error {
	if m.UpdateFunc == nil {
		panic("documentStoreMock.UpdateFunc: method is nil but documentStore.Update was just called")
	}
	return m.UpdateFunc(ctx, ref, updates...)
}

func (m *documentStoreMock) Mutate(ctx context.Context, ref docstore.Ref, fn docstore.MutateFunc) error {
	if m.MutateFunc == nil {
		panic("documentStoreMock.MutateFunc: method is nil but documentStore.Mutate was just called")
	}
	return m.MutateFunc(ctx, ref, fn)
}

func (m *documentStoreMock) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if m.QueryFunc == nil {
		panic("documentStoreMock.QueryFunc: method is nil but documentStore.Query was just called")
	}
	return m.QueryFunc(ctx, q)
}
