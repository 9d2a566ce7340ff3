// Package mysql implements sqlport.Adapter natively on MySQL and MariaDB.
//
// Statements reach the server as written. LOAD DATA LOCAL INFILE files are
// made available to the driver only for the duration of one load.
package mysql
