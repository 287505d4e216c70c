// Package postgres implements the transactional store driver over
// PostgreSQL.
//
// Connection handles a primary/replica pair behind a dbresolver round-robin
// resolver and runs file-source schema migrations on connect. Driver adapts
// it to the database.Driver boundary: statements and transactions go to the
// primary, health probes go through the resolver.
package postgres
