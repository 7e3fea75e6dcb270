// Package ephemera provides a token-addressed ephemeral object store with
// pluggable metadata registries and blob stores.
//
// An upload is stored once and handed back as an unguessable token. Holders
// of the token can fetch the object until it expires or its owner deletes
// it, optionally gated by a password. Expired objects are invisible to every
// read path immediately and are physically removed later by the Reaper.
//
// # Key Components
//
//   - Service: Ingestion pipeline plus the read, list and delete paths
//   - ObjectRegistry: Interface for metadata persistence (PostgreSQL, SQLite)
//   - BlobStore: Interface for raw bytes (filesystem, S3-compatible)
//   - AccessController: Password and ownership checks
//   - Reaper: Periodic purge of expired objects
//
// # Ownership
//
// Owner is either Anonymous() or OwnedBy(id). Anonymous uploads can be read
// by anyone with the token but can never be deleted through the owner path;
// they leave only through expiry.
//
// # Example Usage
//
//	service, err := ephemera.NewService(repo, blobs, ephemera.ServiceConfig{
//	    Policy: ephemera.DefaultUploadPolicy(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Upload
//	obj, err := service.Ingest(ctx, ephemera.IngestRequest{
//	    OriginalName: "report.pdf",
//	    Password:     "secret123",
//	}, reader)
//
//	// Fetch by token
//	obj, content, err := service.Download(ctx, obj.Token, "secret123")
//
// See the http package for the REST API and the database package for
// registry backends.
package ephemera
