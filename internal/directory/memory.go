package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Directory and RecordStore.
type Memory struct {
	mu            sync.RWMutex
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	records       map[uuid.UUID]PatientRecord
}

func NewMemory() *Memory {
	return &Memory{
		patients:      make(map[uuid.UUID]Patient),
		practitioners: make(map[uuid.UUID]Practitioner),
		records:       make(map[uuid.UUID]PatientRecord),
	}
}

func (m *Memory) PutPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *Memory) PutPractitioner(p Practitioner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.practitioners[p.ID] = p
}

func (m *Memory) PutRecord(r PatientRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.PatientID] = copyRecord(r)
}

func (m *Memory) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *Memory) GetPractitioner(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (m *Memory) ListActivePractitioners(_ context.Context) ([]Practitioner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Practitioner
	for _, p := range m.practitioners {
		if p.Active {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (m *Memory) ListActivePatients(_ context.Context) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Patient
	for _, p := range m.patients {
		if p.Active {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (m *Memory) GetRecord(_ context.Context, patientID uuid.UUID) (*PatientRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[patientID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := copyRecord(r)
	return &out, nil
}

func (m *Memory) MergeClinicalFindings(_ context.Context, patientID uuid.UUID, allergies, conditions []string, lastEncounterAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[patientID]
	r.PatientID = patientID
	if allergies != nil {
		r.Allergies = append([]string(nil), allergies...)
	}
	if conditions != nil {
		r.MedicalConditions = append([]string(nil), conditions...)
	}
	at := lastEncounterAt
	r.LastEncounterAt = &at
	m.records[patientID] = r
	return nil
}

func copyRecord(r PatientRecord) PatientRecord {
	r.Allergies = append([]string(nil), r.Allergies...)
	r.MedicalConditions = append([]string(nil), r.MedicalConditions...)
	if r.LastEncounterAt != nil {
		t := *r.LastEncounterAt
		r.LastEncounterAt = &t
	}
	return r
}
