// Package core runs named import profiles.
//
// A [Profile] is a YAML document naming a source, a sink and the column
// mapping between them:
//
//	name: customers
//	source: {kind: delimited, path: data/customers.csv, headerSearchRows: 10}
//	sink: {kind: database, table: customers, truncate: true}
//	columns:
//	  - {name: Id, type: Int32, allowNull: false}
//	  - {name: Email, type: String}
//
// [LoadProfiles] registers every profile in a directory. [Service] runs them:
// each run builds a reader for the source, populates a grid and hands it to
// the sink. The [ImportLimiter] bounds concurrent runs and lets shutdown wait
// for running imports to finish.
//
// # Error Codes
//
// [MapError] turns import errors into a [UserMessage] with a code users can
// quote to support:
//
//   - SCH: invalid schema or profile
//   - CST, NUL: value coercion failures
//   - ABT: aborted imports (missing columns, empty sources)
//   - DB: database row failures, keyed by SQLSTATE or MySQL error number
//   - FILE, IMP: uploads and service limits
package core
