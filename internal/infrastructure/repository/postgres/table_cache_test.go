package postgres

import "testing"

func TestTableCacheEvictsAndCopies(t *testing.T) {
	c := NewTableCache(2)
	cols := []string{"id", "pid"}
	c.Put("case_a", "processes", cols)
	cols[1] = "mutated"

	got, ok := c.Get("case_a", "processes")
	if !ok || got[1] != "pid" {
		t.Fatalf("cache must keep its own copy, got %v", got)
	}
	got[0] = "mutated"
	if again, _ := c.Get("case_a", "processes"); again[0] != "id" {
		t.Fatalf("Get must return a copy")
	}

	c.Put("case_a", "boot_info", []string{"id"})
	c.Put("case_a", "dns_cache", []string{"id"})
	if c.Len() != 2 {
		t.Fatalf("expected size cap of 2, got %d", c.Len())
	}
	if _, ok := c.Get("case_a", "processes"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
}

func TestLockKeyIsStablePerNamespace(t *testing.T) {
	if lockKey("case_a") != lockKey("case_a") {
		t.Fatalf("lock key must be deterministic")
	}
	if lockKey("case_a") == lockKey("case_b") {
		t.Fatalf("distinct namespaces should not share a lock key")
	}
}
