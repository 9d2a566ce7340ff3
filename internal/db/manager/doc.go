// Package manager creates, drops and inspects PostgreSQL databases.
//
// Names are quoted with pgx.Identifier.Sanitize, so any string is a valid
// database name.
//
//	mgr := manager.New()
//	exists, err := mgr.Exists(ctx, session, "piwik")
//	err = mgr.TerminateConnections(ctx, session, "piwik")
//	err = mgr.Drop(ctx, session, "piwik")
package manager
