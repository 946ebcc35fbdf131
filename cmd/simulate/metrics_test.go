package main

import (
	"bytes"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIDBagTakeRemoves(t *testing.T) {
	var bag idBag
	a, b := uuid.New(), uuid.New()
	bag.add(a)
	bag.add(b)

	rng := rand.New(rand.NewSource(1))
	seen := map[uuid.UUID]bool{}
	for i := 0; i < 2; i++ {
		id, ok := bag.take(rng)
		if !ok {
			t.Fatalf("take %d: bag empty", i)
		}
		seen[id] = true
	}
	if !seen[a] || !seen[b] {
		t.Errorf("took %v, want both ids", seen)
	}
	if _, ok := bag.take(rng); ok {
		t.Error("take on empty bag should fail")
	}
}

func TestOpMetricsStats(t *testing.T) {
	var m opMetrics
	for i := 1; i <= 100; i++ {
		m.record(time.Duration(i)*time.Millisecond, outcomeOK)
	}
	m.record(time.Second, outcomeConflict)

	s := m.stats()
	if s.min != time.Millisecond || s.max != time.Second {
		t.Errorf("min/max = %s/%s", s.min, s.max)
	}
	if s.p50 != 51*time.Millisecond {
		t.Errorf("p50 = %s", s.p50)
	}
	if m.total != 101 || m.ok != 100 || m.conflict != 1 {
		t.Errorf("counts = %d/%d/%d", m.total, m.ok, m.conflict)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   outcome
	}{
		{http.StatusCreated, nil, outcomeOK},
		{http.StatusConflict, nil, outcomeConflict},
		{http.StatusInternalServerError, nil, outcomeError},
		{0, errors.New("dial"), outcomeError},
	}
	for _, tt := range tests {
		if got := classify(tt.status, tt.err, http.StatusCreated); got != tt.want {
			t.Errorf("classify(%d, %v) = %d, want %d", tt.status, tt.err, got, tt.want)
		}
	}
}

func TestReportSkipsUnusedOperations(t *testing.T) {
	var m metrics
	m.book.record(10*time.Millisecond, outcomeOK)

	var buf bytes.Buffer
	m.report(&buf, time.Minute, 4)

	out := buf.String()
	if !strings.Contains(out, "Book:") {
		t.Errorf("report missing Book section:\n%s", out)
	}
	if strings.Contains(out, "Cancel:") {
		t.Errorf("report lists an operation that never ran:\n%s", out)
	}
}
