// Package orm defines the persistent-store contracts the fixture workflow
// consumes: managers, the registry that names them, entity metadata, and
// optional capabilities discovered by type assertion.
//
// # Families
//
// Every Manager reports a Family. The family selects the purge and execute
// strategy used when loading fixtures:
//
//   - FamilyRelational: SQL databases (sqlite, postgres subpackages)
//   - FamilyDocument: collection-oriented stores (docstore subpackage)
//
// # Capabilities
//
// Behaviour that only some stores support is expressed as small interfaces
// rather than family checks:
//
//   - Relational: executes SQL statements in a known Dialect
//   - SchemaManager: drops and recreates the schema from metadata
//   - FileDatabase: a single-file embedded database that can be suspended
//     while its file is replaced (snapshot restore)
//   - DocumentStore: lists and drops collections
package orm
