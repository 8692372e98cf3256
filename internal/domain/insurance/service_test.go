package insurance

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testNow = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

type mockRepo struct {
	policies map[uuid.UUID]*Policy
}

func newMockRepo() *mockRepo {
	return &mockRepo{policies: make(map[uuid.UUID]*Policy)}
}

func (m *mockRepo) Create(_ context.Context, p *Policy) error {
	p.ID = uuid.New()
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Policy, error) {
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Policy) error {
	if _, ok := m.policies[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.policies, id)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Policy, int, error) {
	var all []*Policy
	for _, p := range m.policies {
		if p.PatientID == patientID {
			cp := *p
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].InsuranceType < all[j].InsuranceType })
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

func newPolicy() *Policy {
	return &Policy{
		PatientID: uuid.New(),
		PayerName: "Cascade Health",
		MemberID:  "CH-299301",
	}
}

func TestCreatePolicy(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.InsuranceType != "primary" {
		t.Errorf("expected default insurance_type primary, got %s", p.InsuranceType)
	}
	if p.VerificationStatus != VerificationUnverified {
		t.Errorf("expected new policy unverified, got %s", p.VerificationStatus)
	}
}

func TestCreatePolicy_RequiredFields(t *testing.T) {
	svc := newTestService()
	cases := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"missing patient", func(p *Policy) { p.PatientID = uuid.Nil }},
		{"missing payer", func(p *Policy) { p.PayerName = "" }},
		{"missing member id", func(p *Policy) { p.MemberID = "" }},
		{"bad insurance type", func(p *Policy) { p.InsuranceType = "quaternary" }},
	}
	for _, tc := range cases {
		p := newPolicy()
		tc.mutate(p)
		if err := svc.Create(context.Background(), p); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestCreatePolicy_TerminationBeforeEffective(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	eff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	term := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p.EffectiveDate = &eff
	p.TerminationDate = &term
	if err := svc.Create(context.Background(), p); err == nil {
		t.Error("expected error for termination before effective date")
	}
}

func TestCreatePolicy_IgnoresClientVerification(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	p.VerificationStatus = VerificationVerified
	at := testNow
	p.VerifiedAt = &at
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.VerificationStatus != VerificationUnverified || p.VerifiedAt != nil {
		t.Error("create must discard verification fields")
	}
}

func TestVerifyPolicy(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	svc.Create(context.Background(), p)

	verified, err := svc.Verify(context.Background(), p.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.VerificationStatus != VerificationVerified {
		t.Errorf("expected verified, got %s", verified.VerificationStatus)
	}
	if verified.VerifiedAt == nil || !verified.VerifiedAt.Equal(testNow) {
		t.Errorf("verified_at = %v, want %v", verified.VerifiedAt, testNow)
	}
}

func TestVerifyPolicy_ExplicitOutcome(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	svc.Create(context.Background(), p)

	verified, err := svc.Verify(context.Background(), p.ID, VerificationExpired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.VerificationStatus != VerificationExpired {
		t.Errorf("expected expired, got %s", verified.VerificationStatus)
	}
}

func TestVerifyPolicy_InvalidOutcome(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	svc.Create(context.Background(), p)

	if _, err := svc.Verify(context.Background(), p.ID, "unverified"); err == nil {
		t.Error("expected error verifying back to unverified")
	}
	if _, err := svc.Verify(context.Background(), p.ID, "confirmed"); err == nil {
		t.Error("expected error for status outside the closed set")
	}
}

func TestUpdatePreservesVerification(t *testing.T) {
	svc := newTestService()
	p := newPolicy()
	svc.Create(context.Background(), p)
	if _, err := svc.Verify(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.PayerName = "Cascade Health Plus"
	p.VerificationStatus = VerificationUnverified
	if err := svc.Update(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), p.ID)
	if got.PayerName != "Cascade Health Plus" {
		t.Errorf("payer not updated: %s", got.PayerName)
	}
	if got.VerificationStatus != VerificationVerified || got.VerifiedAt == nil {
		t.Error("update must not reset verification state")
	}
}

func TestListByPatient(t *testing.T) {
	svc := newTestService()
	patientID := uuid.New()
	for _, typ := range []string{"secondary", "primary"} {
		p := newPolicy()
		p.PatientID = patientID
		p.InsuranceType = typ
		if err := svc.Create(context.Background(), p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	svc.Create(context.Background(), newPolicy())

	items, total, err := svc.ListByPatient(context.Background(), patientID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 policies, got %d", total)
	}
	if items[0].InsuranceType != "primary" {
		t.Errorf("expected primary policy first, got %s", items[0].InsuranceType)
	}
}

func TestPolicyCoversOn(t *testing.T) {
	eff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	term := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	p := &Policy{EffectiveDate: &eff, TerminationDate: &term}

	if !p.CoversOn(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected coverage inside the window")
	}
	if p.CoversOn(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected no coverage before the effective date")
	}
	if p.CoversOn(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected no coverage after the termination date")
	}

	p.TerminationDate = nil
	if !p.CoversOn(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected open-ended coverage without a termination date")
	}
	p.EffectiveDate = nil
	if p.CoversOn(testNow) {
		t.Error("expected no coverage without an effective date")
	}
}
