package ephemera

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Owner identifies who uploaded an object. The zero value is anonymous.
type Owner struct {
	id string
}

// Anonymous returns the owner of objects uploaded without authentication.
func Anonymous() Owner {
	return Owner{}
}

// OwnedBy returns an owner for the authenticated user id. An empty id is anonymous.
func OwnedBy(id string) Owner {
	return Owner{id: id}
}

// IsAnonymous reports whether the object has no authenticated owner.
func (o Owner) IsAnonymous() bool {
	return o.id == ""
}

// ID returns the owner's user id and false for anonymous owners.
func (o Owner) ID() (string, bool) {
	return o.id, o.id != ""
}

// Matches reports whether requesterID owns the object.
// Anonymous owners never match, whatever the requester.
func (o Owner) Matches(requesterID string) bool {
	if o.IsAnonymous() || requesterID == "" {
		return false
	}
	return o.id == requesterID
}

func (o Owner) String() string {
	if o.IsAnonymous() {
		return "anonymous"
	}
	return o.id
}

// StoredObject is a registry entry together with the reference to its blob.
type StoredObject struct {
	ID            uuid.UUID
	Token         string
	OriginalName  string
	MimeType      string
	SizeBytes     int64
	StoredRef     string
	PasswordHash  string
	Owner         Owner
	CreatedAt     time.Time
	ExpiresAt     time.Time
	DownloadCount int64
	Tags          []string
}

// IsLive reports whether the object is still readable at now.
func (o StoredObject) IsLive(now time.Time) bool {
	return now.Before(o.ExpiresAt)
}

// HasPassword reports whether reads must supply a password.
func (o StoredObject) HasPassword() bool {
	return o.PasswordHash != ""
}

// HasTag reports whether the object carries the normalized tag.
func (o StoredObject) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type TagView struct {
	Name string `json:"name"`
}

// ObjectMetadata is the public view of an object looked up by token.
type ObjectMetadata struct {
	OriginalName  string    `json:"originalName"`
	Size          int64     `json:"size"`
	MimeType      string    `json:"mimeType"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
	DownloadCount int64     `json:"downloadCount"`
	HasPassword   bool      `json:"hasPassword"`
	Tags          []TagView `json:"tags"`
}

// ObjectSummary is the owner's view of an object, including its id and token.
type ObjectSummary struct {
	ID    uuid.UUID `json:"id"`
	Token string    `json:"token"`
	ObjectMetadata
}

// Metadata projects the object onto its public view.
func (o StoredObject) Metadata() ObjectMetadata {
	tags := make([]TagView, 0, len(o.Tags))
	for _, t := range o.Tags {
		tags = append(tags, TagView{Name: t})
	}

	return ObjectMetadata{
		OriginalName:  o.OriginalName,
		Size:          o.SizeBytes,
		MimeType:      o.MimeType,
		ExpiresAt:     o.ExpiresAt,
		CreatedAt:     o.CreatedAt,
		DownloadCount: o.DownloadCount,
		HasPassword:   o.HasPassword(),
		Tags:          tags,
	}
}

// Summary projects the object onto the owner's view.
func (o StoredObject) Summary() ObjectSummary {
	return ObjectSummary{ID: o.ID, Token: o.Token, ObjectMetadata: o.Metadata()}
}

// IngestRequest describes an upload. ExpiresInDays is the raw client value.
type IngestRequest struct {
	OriginalName  string `validate:"required,max=255"`
	MimeType      string `validate:"max=255"`
	ExpiresInDays string
	Password      string `validate:"omitempty,min=6,max=72"`
	Tags          string `validate:"max=1024"`
	Owner         Owner
}

type PutResult struct {
	StoredRef    string
	BytesWritten int64
}

// Tables holds configurable table names for registry storage.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	Objects string `mapstructure:"objects" yaml:"objects"`
	Tags    string `mapstructure:"tags" yaml:"tags"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	if t.Objects == "" {
		return errors.New("validate tables: objects table name cannot be empty")
	}

	if t.Tags == "" {
		return errors.New("validate tables: tags table name cannot be empty")
	}

	for _, name := range []string{t.Objects, t.Tags} {
		if !IsValidTableName(name) {
			return fmt.Errorf("validate tables: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", name)
		}
	}

	if t.Objects == t.Tags {
		return fmt.Errorf("validate tables: objects and tags tables must differ: %s", t.Objects)
	}

	return nil
}
