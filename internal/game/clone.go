package game

import (
	"maps"
	"slices"

	"github.com/heartmarshall/labsim/internal/domain"
)

func (st State) clone() State {
	out := st
	out.CurrentLaboratory = cloneLaboratory(st.CurrentLaboratory)
	out.ActiveMissions = cloneMissions(st.ActiveMissions)
	out.Samples = slices.Clone(st.Samples)
	out.Equipment = cloneEquipment(st.Equipment)
	out.Inventory = cloneInventory(st.Inventory)
	if st.CurrentSample != nil {
		sample := *st.CurrentSample
		out.CurrentSample = &sample
	}
	out.UI.Notifications = slices.Clone(st.UI.Notifications)
	return out
}

func cloneLaboratory(l *domain.Laboratory) *domain.Laboratory {
	if l == nil {
		return nil
	}
	out := *l
	out.Members = slices.Clone(l.Members)
	out.MemberIDs = slices.Clone(l.MemberIDs)
	out.Layout.Objects = slices.Clone(l.Layout.Objects)
	out.Equipment = cloneEquipment(l.Equipment)
	return &out
}

func cloneMissions(ms []domain.Mission) []domain.Mission {
	if ms == nil {
		return nil
	}
	out := make([]domain.Mission, len(ms))
	for i, m := range ms {
		out[i] = m.Clone()
	}
	return out
}

func cloneEquipment(es []domain.Equipment) []domain.Equipment {
	if es == nil {
		return nil
	}
	out := make([]domain.Equipment, len(es))
	for i, e := range es {
		e.Capabilities = slices.Clone(e.Capabilities)
		e.Configuration = maps.Clone(e.Configuration)
		out[i] = e
	}
	return out
}

func cloneInventory(items []domain.InventoryItem) []domain.InventoryItem {
	if items == nil {
		return nil
	}
	out := make([]domain.InventoryItem, len(items))
	for i, it := range items {
		it.Properties = maps.Clone(it.Properties)
		out[i] = it
	}
	return out
}
