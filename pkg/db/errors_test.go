package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolationNamedConstraint(t *testing.T) {
	err := errors.New(`duplicate key value violates unique constraint "ux_credit_reservations_order"`)
	if !IsUniqueViolation(err, "ux_credit_reservations_order") {
		t.Fatal("expected named constraint match")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected generic duplicate-key match")
	}
}

func TestIsUniqueViolationSQLiteColumnMessage(t *testing.T) {
	// sqlite reports columns, never the index name; the named lookup must
	// still classify the error as a duplicate.
	err := errors.New("UNIQUE constraint failed: credit_reservations.order_id")
	if !IsUniqueViolation(err, "ux_credit_reservations_order") {
		t.Fatal("expected sqlite duplicate to match despite constraint-name miss")
	}
}

func TestIsUniqueViolationUnrelatedError(t *testing.T) {
	err := errors.New("connection refused")
	if IsUniqueViolation(err, "ux_credit_reservations_order") {
		t.Fatal("unrelated error must not classify as duplicate")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error must not classify as duplicate")
	}
}
