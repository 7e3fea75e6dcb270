package clientcli

import (
	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	ContentType string // optional, detected from the extension if empty
	ExpiresIn   int    // days; zero leaves the choice to the server
	Password    string
	Tags        []string
	Recursive   bool
}

// UploadResult is the outcome of uploading a single file.
type UploadResult struct {
	LocalPath string `json:"localPath"`
	ephemera.ObjectSummary
	Err error `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	Token     string
	Password  string
	LocalPath string // empty = server-provided name, "-" = stdout
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	Token     string `json:"token"`
	LocalPath string `json:"localPath"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
}

// DeleteResult is the outcome of deleting a single object.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"`
}

// ObjectInfo is an owned object as listed by the server.
type ObjectInfo = ephemera.ObjectSummary

// FileInfo is the public metadata of a shared file.
type FileInfo = ephemera.ObjectMetadata

func parseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
