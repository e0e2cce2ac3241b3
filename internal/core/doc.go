// Package core is the record engine: it turns delimited text into typed
// records and links records across sets.
//
// It is independent of where record files live and of any transport layer.
// The loader package supplies files; the web and CLI layers present results.
//
// # Pipeline
//
//  1. [Tokenizer] splits each line into trimmed fields
//  2. [Binder] maps header columns to struct fields by [ColumnMapping] and
//     converts every cell through a [Converters] registry
//  3. [Resolver] fills relationship properties from other record sets,
//     fetched through a [SetLoader]
//  4. A [CacheStore] keeps bound sets so each file is read once
//
// # Schemas
//
// Record types are registered once with a [SchemaRegistry]. Columns come
// from `tab` struct tags unless listed explicitly:
//
//	type Spawn struct {
//	    ID     int   `tab:"id"`
//	    ZoneID int   `tab:"zone_id"`
//	    Zone   *Zone
//	}
//
//	schemas.MustRegister(core.SchemaFor[Spawn]("spawns", core.Relationship{
//	    Field: "Zone", Target: "zones",
//	    PrimaryKey: "ZoneID", ForeignKey: "ID",
//	    Cardinality: core.One,
//	}))
//
// # Failure model
//
// Bad data never aborts a load. A cell that cannot be converted becomes the
// zero value of its field and is logged with [ErrMalformedField]. Cycles
// between relationships are cut at the first repeated set and logged with
// [ErrCircularRelationship]. Only invalid input and loader failures are
// returned as errors.
package core
