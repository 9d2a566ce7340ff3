// Package postgres runs MySQL-flavoured statements against PostgreSQL.
//
// Adapter classifies each statement: table locks are acknowledged without
// a round trip, LOAD DATA INFILE is emulated with a staging table, COPY and
// an INSERT ... ON CONFLICT merge, and everything else is executed after
// backtick identifiers are rewritten to double quotes.
package postgres
