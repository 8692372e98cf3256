package clinical

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testNow = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

type mockRepo struct {
	records map[uuid.UUID]*VisitRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*VisitRecord)}
}

func (m *mockRepo) Create(_ context.Context, rec *VisitRecord) error {
	rec.ID = uuid.New()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*VisitRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, rec *VisitRecord) error {
	if _, ok := m.records[rec.ID]; !ok {
		return ErrNotFound
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.records, id)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*VisitRecord, int, error) {
	var all []*VisitRecord
	for _, rec := range m.records {
		if rec.PatientID == patientID {
			cp := *rec
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].VisitDate.After(all[j].VisitDate) })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func newTestService() *Service {
	svc := NewService(newMockRepo())
	svc.now = func() time.Time { return testNow }
	return svc
}

func newVisitRecord() *VisitRecord {
	return &VisitRecord{
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		VisitDate:  time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		RecordType: TypeOfficeVisit,
	}
}

func TestCreateRecord(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	rec.Vitals = []byte(`{"bp": "120/80", "hr": 62}`)
	if err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Signed {
		t.Error("new records must start unsigned")
	}
}

func TestCreateRecord_InvalidType(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	rec.RecordType = "house_call"
	if err := svc.Create(context.Background(), rec); err == nil {
		t.Error("expected error for record_type outside the closed set")
	}
}

func TestCreateRecord_RequiredFields(t *testing.T) {
	svc := newTestService()
	cases := []struct {
		name   string
		mutate func(*VisitRecord)
	}{
		{"missing patient", func(r *VisitRecord) { r.PatientID = uuid.Nil }},
		{"missing provider", func(r *VisitRecord) { r.ProviderID = uuid.Nil }},
		{"missing visit date", func(r *VisitRecord) { r.VisitDate = time.Time{} }},
		{"missing record type", func(r *VisitRecord) { r.RecordType = "" }},
	}
	for _, tc := range cases {
		rec := newVisitRecord()
		tc.mutate(rec)
		if err := svc.Create(context.Background(), rec); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestCreateRecord_InvalidVitals(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	rec.Vitals = []byte(`{"bp": `)
	if err := svc.Create(context.Background(), rec); err == nil {
		t.Error("expected error for malformed vitals JSON")
	}
}

func TestCreateIgnoresClientSuppliedSignature(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	rec.Signed = true
	by := "dr.iverson"
	rec.SignedBy = &by
	if err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Signed || rec.SignedBy != nil {
		t.Error("create must discard signing fields")
	}
}

func TestSignRecord(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	svc.Create(context.Background(), rec)

	signed, err := svc.Sign(context.Background(), rec.ID, "dr.iverson")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !signed.Signed {
		t.Error("expected record to be signed")
	}
	if signed.SignedAt == nil || !signed.SignedAt.Equal(testNow) {
		t.Errorf("signed_at = %v, want %v", signed.SignedAt, testNow)
	}
	if signed.SignedBy == nil || *signed.SignedBy != "dr.iverson" {
		t.Errorf("unexpected signed_by: %v", signed.SignedBy)
	}
}

func TestSignRecord_AlreadySigned(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	svc.Create(context.Background(), rec)
	if _, err := svc.Sign(context.Background(), rec.ID, "dr.iverson"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Sign(context.Background(), rec.ID, "dr.okafor"); err == nil {
		t.Error("expected error signing an already-signed record")
	}
}

func TestSignRecord_RequiresSigner(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	svc.Create(context.Background(), rec)
	if _, err := svc.Sign(context.Background(), rec.ID, ""); err == nil {
		t.Error("expected error for empty signed_by")
	}
}

func TestUpdateSignedRecordRejected(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	svc.Create(context.Background(), rec)
	svc.Sign(context.Background(), rec.ID, "dr.iverson")

	note := "amended"
	rec.Notes = &note
	if err := svc.Update(context.Background(), rec); err == nil {
		t.Error("expected error updating a signed record")
	}
}

func TestDeleteSignedRecordRejected(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	svc.Create(context.Background(), rec)
	svc.Sign(context.Background(), rec.ID, "dr.iverson")

	if err := svc.Delete(context.Background(), rec.ID); err == nil {
		t.Error("expected error deleting a signed record")
	}
}

func TestUpdateUnsignedRecord(t *testing.T) {
	svc := newTestService()
	rec := newVisitRecord()
	svc.Create(context.Background(), rec)

	plan := "follow up in two weeks"
	rec.Plan = &plan
	if err := svc.Update(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), rec.ID)
	if got.Plan == nil || *got.Plan != plan {
		t.Errorf("plan not persisted: %v", got.Plan)
	}
}

func TestListByPatientOrdersNewestFirst(t *testing.T) {
	svc := newTestService()
	patientID := uuid.New()
	for _, day := range []int{10, 12, 11} {
		rec := newVisitRecord()
		rec.PatientID = patientID
		rec.VisitDate = time.Date(2024, 6, day, 9, 0, 0, 0, time.UTC)
		if err := svc.Create(context.Background(), rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	svc.Create(context.Background(), newVisitRecord())

	items, total, err := svc.ListByPatient(context.Background(), patientID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 records, got %d", total)
	}
	for i := 1; i < len(items); i++ {
		if items[i].VisitDate.After(items[i-1].VisitDate) {
			t.Error("expected records ordered newest first")
		}
	}
}
