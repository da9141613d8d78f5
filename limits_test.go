package main

import "testing"

func TestConnLimiterTotalCap(t *testing.T) {
	l := newConnLimiter(2, 0)

	if !l.Admit("1.1.1.1") {
		t.Fatal("expected first connection to be admitted")
	}
	if !l.Admit("2.2.2.2") {
		t.Fatal("expected second connection to be admitted")
	}
	if l.Admit("3.3.3.3") {
		t.Fatal("expected third connection to be rejected at the total cap")
	}

	l.Release("1.1.1.1")
	if !l.Admit("3.3.3.3") {
		t.Fatal("expected a slot to free up after Release")
	}
}

func TestConnLimiterPerIPCap(t *testing.T) {
	l := newConnLimiter(0, 2)

	if !l.Admit("1.1.1.1") || !l.Admit("1.1.1.1") {
		t.Fatal("expected first two connections from the same IP to be admitted")
	}
	if l.Admit("1.1.1.1") {
		t.Fatal("expected a third connection from the same IP to be rejected")
	}
	if !l.Admit("2.2.2.2") {
		t.Fatal("expected a connection from a different IP to be unaffected")
	}

	l.Release("1.1.1.1")
	if !l.Admit("1.1.1.1") {
		t.Fatal("expected a slot to free up after Release")
	}
}

func TestConnLimiterUnlimited(t *testing.T) {
	l := newConnLimiter(0, 0)
	for i := 0; i < 50; i++ {
		if !l.Admit("9.9.9.9") {
			t.Fatalf("expected unlimited limiter to admit connection %d", i)
		}
	}
	if l.Total() != 50 {
		t.Errorf("Total() = %d, want 50", l.Total())
	}
}
