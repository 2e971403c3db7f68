package env

import (
	"os"
	"testing"
)

func TestInt(t *testing.T) {
	result := Int("nonexistent", 15)
	Parse()

	if *result != 15 {
		t.Fatalf("expected result=15, got result=%d", *result)
	}

	err := os.Setenv("int-key", "25")
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	result = Int("int-key", 15)
	Parse()

	if *result != 25 {
		t.Fatalf("expected result=25, got result=%d", *result)
	}
}

func TestIntVar(t *testing.T) {
	var result int
	IntVar(&result, "nonexistent", 15)
	Parse()

	if result != 15 {
		t.Fatalf("expected result=15, got result=%d", result)
	}

	err := os.Setenv("int-key", "25")
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	IntVar(&result, "int-key", 15)
	Parse()

	if result != 25 {
		t.Fatalf("expected result=25, got result=%d", result)
	}
}

func TestBool(t *testing.T) {
	result := Bool("nonexistent", true)
	Parse()

	if !*result {
		t.Fatal("expected result=true, got result=false")
	}

	err := os.Setenv("bool-key", "false")
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	result = Bool("bool-key", true)
	Parse()

	if *result {
		t.Fatal("expected result=false, got result=true")
	}
}

func TestString(t *testing.T) {
	result := String("nonexistent", "default")
	Parse()

	if *result != "default" {
		t.Fatalf("expected result=default, got result=%s", *result)
	}

	err := os.Setenv("string-key", "configured")
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	result = String("string-key", "default")
	Parse()

	if *result != "configured" {
		t.Fatalf("expected result=configured, got result=%s", *result)
	}
}
