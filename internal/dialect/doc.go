// Package dialect translates MySQL-flavoured SQL text into the pieces the
// PostgreSQL adapter executes.
//
// Everything here is pure: classification, identifier quote rewriting,
// column definition rewriting, LOAD DATA parsing and upsert planning take
// strings and return values without touching a connection.
//
// Classification is anchored. A statement is a lock or bulk-load
// instruction only if it starts with one (after whitespace and comments),
// and such candidates are confirmed with the MySQL grammar before they are
// acted on:
//
//	kind, err := dialect.Classify("LOCK TABLES `piwik_option` WRITE")
//	// kind == sqlport.KindLock
//
//	req, err := dialect.ParseLoadData("LOAD DATA LOCAL INFILE '/tmp/a.csv' INTO TABLE `t` (`id`, `name`)")
//	// req.Table == "t", req.Columns == []string{"id", "name"}
package dialect
