package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error. It is never sent to clients.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Retryable  bool
	Chain      []string
	Postgres   PostgresDetail
}

// PostgresDetail carries the server fields of a postgres error, whichever
// driver surfaced it.
type PostgresDetail struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Dump flattens err for structured logging.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), Code: CodeInternal}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	d.Retryable = MetadataFor(d.Code).Retryable

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Postgres = postgresDetail(err)
	return d
}

// Fields returns the dump as logger fields. Postgres fields appear only when
// the chain holds a postgres error.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":           d.TopMessage,
		"error_code":      d.Code,
		"error_retryable": d.Retryable,
		"error_chain":     d.Chain,
	}
	if d.Postgres.Code == "" {
		return fields
	}
	fields["pg_code"] = d.Postgres.Code
	fields["pg_constraint"] = d.Postgres.Constraint
	fields["pg_table"] = d.Postgres.Table
	fields["pg_column"] = d.Postgres.Column
	fields["pg_detail"] = d.Postgres.Detail
	fields["pg_message"] = d.Postgres.Message
	return fields
}

func postgresDetail(err error) PostgresDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PostgresDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PostgresDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return PostgresDetail{}
}
