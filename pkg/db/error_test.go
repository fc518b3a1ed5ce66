package db

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm sentinel", err: gorm.ErrDuplicatedKey, want: true},
		{name: "postgres", err: errors.New(`ERROR: duplicate key value violates unique constraint "user_profiles_pkey" (SQLSTATE 23505)`), want: true},
		{name: "mysql", err: errors.New("Error 1062: Duplicate entry '42' for key 'PRIMARY'"), want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: stories.id"), want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
