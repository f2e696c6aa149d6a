package scheduling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestForeignKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"fk violation", &pgconn.PgError{Code: "23503", ConstraintName: "appointment_patient_id_fkey"}, ErrUnknownParty},
		{"wrapped fk violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), ErrUnknownParty},
		{"unique violation", &pgconn.PgError{Code: "23505"}, nil},
		{"no rows", pgx.ErrNoRows, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := foreignKey(tt.err)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
				return
			}
			if got != tt.err {
				t.Errorf("expected the error unchanged, got %v", got)
			}
		})
	}
}
