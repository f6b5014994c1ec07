package main

import (
	"encoding/json"
	"testing"
)

func TestScoreCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"score", "password", "correct horse battery staple"}, env.configPath)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	requireContains(t, out, "password")
	requireContains(t, out, "Within bounds")
	requireContains(t, out, "Bounds: [0.00, 128.00]")

	out, _, err = runCLI(t, []string{"score", "--json", "password", "Tr0ub4dor&3"}, env.configPath)
	if err != nil {
		t.Fatalf("score --json: %v", err)
	}
	var results []scoreResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode scores: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !(results[0].Entropy < results[1].Entropy) {
		t.Fatalf("expected %q to score below %q: %#v", results[0].Password, results[1].Password, results)
	}
	if !results[0].Accepted {
		t.Fatalf("expected %q within default bounds", results[0].Password)
	}
}

func TestScoreCommandRequiresArgs(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"score"}, env.configPath); err == nil {
		t.Fatal("expected error without passwords")
	}
}
