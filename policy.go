package ephemera

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTagLength is the longest tag, in characters, kept at upload.
	MaxTagLength = 30

	DefaultMinExpiryDays = 1
	DefaultMaxExpiryDays = 7
	// DefaultMaxSizeBytes matches a 1 GiB multipart limit.
	DefaultMaxSizeBytes int64 = 1 << 30
)

// DefaultForbiddenExtensions lists executable and script types rejected at upload.
var DefaultForbiddenExtensions = []string{".exe", ".bat", ".sh", ".ps1", ".cmd", ".msi"}

// UploadPolicy holds the limits an upload is checked against.
type UploadPolicy struct {
	ForbiddenExtensions []string
	MinExpiryDays       int
	MaxExpiryDays       int
	MaxSizeBytes        int64 // 0 means no limit
}

// DefaultUploadPolicy returns the policy used when none is configured.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		ForbiddenExtensions: slices.Clone(DefaultForbiddenExtensions),
		MinExpiryDays:       DefaultMinExpiryDays,
		MaxExpiryDays:       DefaultMaxExpiryDays,
		MaxSizeBytes:        DefaultMaxSizeBytes,
	}
}

// Validate checks that the expiry bounds are usable.
func (p UploadPolicy) Validate() error {
	if p.MinExpiryDays < 1 {
		return fmt.Errorf("validate upload policy: min expiry days must be >= 1, got %d", p.MinExpiryDays)
	}
	if p.MaxExpiryDays < p.MinExpiryDays {
		return fmt.Errorf("validate upload policy: max expiry days %d below min %d", p.MaxExpiryDays, p.MinExpiryDays)
	}
	if p.MaxSizeBytes < 0 {
		return fmt.Errorf("validate upload policy: max size must be >= 0, got %d", p.MaxSizeBytes)
	}
	return nil
}

// CheckName rejects file names whose extension is forbidden.
// Extensions are compared case-insensitively, with or without the leading dot.
func (p UploadPolicy) CheckName(name string) error {
	ext := FileExtension(name)
	if ext == "" {
		return nil
	}

	for _, forbidden := range p.ForbiddenExtensions {
		f := strings.ToLower(strings.TrimSpace(forbidden))
		if !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		if ext == f {
			return fmt.Errorf("%w: file type %s not allowed", ErrPolicyViolation, ext)
		}
	}

	return nil
}

// ExpiryDays parses the requested lifetime and clamps it to the policy bounds.
// Absent or unparseable input yields the maximum.
func (p UploadPolicy) ExpiryDays(raw string) int {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		days = p.MaxExpiryDays
	}
	return max(p.MinExpiryDays, min(p.MaxExpiryDays, days))
}

// ExpiresAt returns the expiry instant for an object created at createdAt.
func (p UploadPolicy) ExpiresAt(createdAt time.Time, raw string) time.Time {
	return createdAt.Add(time.Duration(p.ExpiryDays(raw)) * 24 * time.Hour)
}

// NormalizeTag trims and lower-cases a single tag. It returns "" for tags
// that are empty or longer than MaxTagLength.
func NormalizeTag(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if utf8.RuneCountInString(t) > MaxTagLength {
		return ""
	}
	return t
}

// NormalizeTags splits a comma-separated tag list, drops empty and overlong
// entries and removes case-insensitive duplicates. The result is sorted.
func NormalizeTags(csv string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)

	for _, raw := range strings.Split(csv, ",") {
		t := NormalizeTag(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	slices.Sort(tags)
	return tags
}
