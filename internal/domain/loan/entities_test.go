package loan

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusActive, false},
		{StatusApproved, StatusCollateralProvided, true},
		{StatusApproved, StatusActive, true},
		{StatusApproved, StatusRepaid, false},
		{StatusCollateralProvided, StatusActive, true},
		{StatusCollateralProvided, StatusRepaid, false},
		{StatusActive, StatusOverdue, true},
		{StatusActive, StatusRepaid, true},
		{StatusActive, StatusLiquidated, true},
		{StatusActive, StatusApproved, false},
		{StatusOverdue, StatusRepaid, true},
		{StatusOverdue, StatusLiquidated, true},
		{StatusOverdue, StatusActive, false},
		// terminal states go nowhere
		{StatusRepaid, StatusActive, false},
		{StatusRejected, StatusApproved, false},
		{StatusLiquidated, StatusRepaid, false},
	}
	for _, c := range cases {
		l := &Loan{Status: c.from}
		if got := l.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: want %v, got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestEnsureTransition(t *testing.T) {
	l := &Loan{Status: StatusPending}
	if err := l.EnsureTransition(StatusApproved); err != nil {
		t.Fatalf("legal move rejected: %v", err)
	}
	if err := l.EnsureTransition(StatusRepaid); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("want ErrIllegalTransition, got %v", err)
	}
}

func TestHasContract(t *testing.T) {
	l := &Loan{}
	if l.HasContract() {
		t.Fatal("no contract expected")
	}
	empty := ""
	l.ContractAddress = &empty
	if l.HasContract() {
		t.Fatal("empty address is not a contract")
	}
	addr := "0x4444444444444444444444444444444444444444"
	l.ContractAddress = &addr
	if !l.HasContract() {
		t.Fatal("contract expected")
	}
}

func TestComputeEndDate(t *testing.T) {
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	got := ComputeEndDate(start, 12)
	want := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}

	// month arithmetic, not 30-day blocks
	got = ComputeEndDate(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), 1)
	want = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
}
