package laboratory

import (
	"context"
	"sync"
)

var _ profileLinker = &profileLinkerMock{}

type profileLinkerMock struct {
	AddLaboratoryFunc    func(ctx context.Context, uid, labID string, makeCurrent bool) error
	RemoveLaboratoryFunc func(ctx context.Context, uid, labID string) error

	calls struct {
		AddLaboratory []struct {
			UID         string
			LabID       string
			MakeCurrent bool
		}
		RemoveLaboratory []struct {
			UID   string
			LabID string
		}
	}
	lockAddLaboratory    sync.RWMutex
	lockRemoveLaboratory sync.RWMutex
}

func (mock *profileLinkerMock) AddLaboratory(ctx context.Context, uid, labID string, makeCurrent bool) error {
	callInfo := struct {
		UID         string
		LabID       string
		MakeCurrent bool
	}{UID: uid, LabID: labID, MakeCurrent: makeCurrent}
	mock.lockAddLaboratory.Lock()
	mock.calls.AddLaboratory = append(mock.calls.AddLaboratory, callInfo)
	mock.lockAddLaboratory.Unlock()
	if mock.AddLaboratoryFunc == nil {
		return nil
	}
	return mock.AddLaboratoryFunc(ctx, uid, labID, makeCurrent)
}

func (mock *profileLinkerMock) AddLaboratoryCalls() []struct {
	UID         string
	LabID       string
	MakeCurrent bool
} {
	mock.lockAddLaboratory.RLock()
	calls := mock.calls.AddLaboratory
	mock.lockAddLaboratory.RUnlock()
	return calls
}

func (mock *profileLinkerMock) RemoveLaboratory(ctx context.Context, uid, labID string) error {
	callInfo := struct {
		UID   string
		LabID string
	}{UID: uid, LabID: labID}
	mock.lockRemoveLaboratory.Lock()
	mock.calls.RemoveLaboratory = append(mock.calls.RemoveLaboratory, callInfo)
	mock.lockRemoveLaboratory.Unlock()
	if mock.RemoveLaboratoryFunc == nil {
		return nil
	}
	return mock.RemoveLaboratoryFunc(ctx, uid, labID)
}

func (mock *profileLinkerMock) RemoveLaboratoryCalls() []struct {
	UID   string
	LabID string
} {
	mock.lockRemoveLaboratory.RLock()
	calls := mock.calls.RemoveLaboratory
	mock.lockRemoveLaboratory.RUnlock()
	return calls
}
