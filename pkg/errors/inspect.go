package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgresDetail carries the server-reported fields of a database error.
type PostgresDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// Inspection is a log-friendly breakdown of an error chain.
type Inspection struct {
	Message  string          `json:"message"`
	Code     Code            `json:"code,omitempty"`
	Chain    []string        `json:"chain,omitempty"`
	Postgres *PostgresDetail `json:"postgres,omitempty"`
}

func Inspect(err error) Inspection {
	if err == nil {
		return Inspection{}
	}
	in := Inspection{Message: err.Error(), Postgres: postgresDetail(err)}
	if typed := As(err); typed != nil {
		in.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		in.Chain = append(in.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return in
}

// Fields flattens the inspection into structured log fields. Postgres keys
// are only present when the chain holds a driver error.
func (in Inspection) Fields() map[string]any {
	fields := map[string]any{
		"error":       in.Message,
		"error_code":  in.Code,
		"error_chain": in.Chain,
	}
	if pg := in.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_message"] = pg.Message
		fields["pg_detail"] = pg.Detail
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_constraint"] = pg.Constraint
	}
	return fields
}

func postgresDetail(err error) *PostgresDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PostgresDetail{
			Code:       pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Constraint: pgxErr.ConstraintName,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PostgresDetail{
			Code:       string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}
	}
	return nil
}
