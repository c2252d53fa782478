package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"petcare-console/internal/apperr"
	"petcare-console/internal/auth"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{apperr.Invalid("password", "must be at least 6 characters"), "invalid password: must be at least 6 characters"},
		{fmt.Errorf("whoami: %w", auth.ErrNotSignedIn), "not signed in"},
		{&apperr.AuthError{Op: "login", Status: 401}, "rejected the credentials"},
		{&apperr.NetworkError{Op: "cats", Err: errors.New("refused")}, "cannot reach the server"},
		{errors.New("boom"), "boom"},
	}
	for _, tc := range cases {
		if got := describe(tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("describe(%v) = %q, want it to contain %q", tc.err, got, tc.want)
		}
	}
}

func TestMoveCommandFromStick(t *testing.T) {
	moveStick = []float64{0, -1}
	t.Cleanup(func() { moveStick = nil })
	cmd, err := moveCommand(true)
	if err != nil {
		t.Fatalf("moveCommand: %v", err)
	}
	if cmd.Linear != 1 || cmd.Angular != 0 {
		t.Fatalf("stick up should drive forward, got %+v", cmd)
	}

	moveStick = []float64{1}
	if _, err := moveCommand(true); err == nil {
		t.Fatalf("expected error for a single stick value")
	}
}

func TestMoveCommandClampsFlags(t *testing.T) {
	moveLinear, moveAngular = 3, -0.5
	t.Cleanup(func() { moveLinear, moveAngular = 0, 0 })
	cmd, err := moveCommand(false)
	if err != nil {
		t.Fatalf("moveCommand: %v", err)
	}
	if cmd.Linear != 1 || cmd.Angular != -0.5 {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, "no cats", []string{"ID", "NAME"}, nil)
	if strings.TrimSpace(buf.String()) != "no cats" {
		t.Fatalf("expected empty message, got %q", buf.String())
	}
	buf.Reset()
	printTable(&buf, "no cats", []string{"ID", "NAME"}, [][]string{{"1", "Mochi"}})
	out := buf.String()
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "Mochi") {
		t.Fatalf("table missing content:\n%s", out)
	}
}
