package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sagarc03/ephemera"
)

// Formatter renders command results.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatInfo(w io.Writer, info *FileInfo) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, items []ObjectInfo) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the JSON or human formatter.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter writes plain text. In quiet mode only the values a script
// would pipe onward are printed.
type HumanFormatter struct {
	Quiet bool
}

const timeLayout = "2006-01-02 15:04:05"

func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if f.Quiet {
			_, _ = fmt.Fprintln(w, r.Token)
			continue
		}
		_, _ = fmt.Fprintf(w, "Uploaded: %s (%s)\n", r.LocalPath, formatSize(r.Size))
		_, _ = fmt.Fprintf(w, "  Token:   %s\n", r.Token)
		_, _ = fmt.Fprintf(w, "  ID:      %s\n", r.ID)
		_, _ = fmt.Fprintf(w, "  Expires: %s\n", r.ExpiresAt.Local().Format(timeLayout))
	}
	return nil
}

func (f *HumanFormatter) FormatInfo(w io.Writer, info *FileInfo) error {
	_, _ = fmt.Fprintf(w, "Name:      %s\n", info.OriginalName)
	_, _ = fmt.Fprintf(w, "Type:      %s\n", info.MimeType)
	_, _ = fmt.Fprintf(w, "Size:      %s\n", formatSize(info.Size))
	_, _ = fmt.Fprintf(w, "Created:   %s\n", info.CreatedAt.Local().Format(timeLayout))
	_, _ = fmt.Fprintf(w, "Expires:   %s\n", info.ExpiresAt.Local().Format(timeLayout))
	_, _ = fmt.Fprintf(w, "Downloads: %d\n", info.DownloadCount)
	_, _ = fmt.Fprintf(w, "Password:  %s\n", yesNo(info.HasPassword))
	if len(info.Tags) > 0 {
		_, _ = fmt.Fprintf(w, "Tags:      %s\n", joinTags(info.Tags))
	}
	return nil
}

func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.Name, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.Name, result.LocalPath, formatSize(result.Size))
	}
	return nil
}

func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.ID, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.ID)
		}
	}
	return nil
}

func (f *HumanFormatter) FormatList(w io.Writer, items []ObjectInfo) error {
	if len(items) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintln(w, "No files found")
		}
		return nil
	}

	if f.Quiet {
		for i := range items {
			_, _ = fmt.Fprintln(w, items[i].ID)
		}
		return nil
	}

	maxNameLen := 4 // "NAME"
	for i := range items {
		maxNameLen = max(maxNameLen, len(items[i].OriginalName))
	}
	maxNameLen = min(maxNameLen, 40)

	_, _ = fmt.Fprintf(w, "%-36s  %-*s  %10s  %-19s  %s\n", "ID", maxNameLen, "NAME", "SIZE", "EXPIRES", "TAGS")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		strings.Repeat("-", 36), strings.Repeat("-", maxNameLen), strings.Repeat("-", 10), strings.Repeat("-", 19), strings.Repeat("-", 4))

	var total int64
	for i := range items {
		item := &items[i]
		total += item.Size
		_, _ = fmt.Fprintf(w, "%-36s  %-*s  %10s  %-19s  %s\n",
			item.ID,
			maxNameLen, truncate(item.OriginalName, maxNameLen),
			formatSize(item.Size),
			item.ExpiresAt.Local().Format(timeLayout),
			joinTags(item.Tags),
		)
	}

	_, _ = fmt.Fprintf(w, "\n%d file(s) (%s total)\n", len(items), formatSize(total))
	return nil
}

func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxEndpointLen = max(maxEndpointLen, len(profiles[i].Endpoint))
	}
	maxNameLen = min(maxNameLen, 20)
	maxEndpointLen = min(maxEndpointLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "TOKEN")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n",
			marker,
			maxNameLen, truncate(p.Name, maxNameLen),
			maxEndpointLen, truncate(p.Endpoint, maxEndpointLen),
			maskSecret(p.Token, showSecrets),
		)
	}

	return nil
}

func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprint(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Token:    %s\n", maskSecret(profile.Token, showSecrets))
	return nil
}

// JSONFormatter writes indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type jsonResult struct {
		LocalPath string     `json:"localPath"`
		ID        string     `json:"id,omitempty"`
		Token     string     `json:"token,omitempty"`
		Size      int64      `json:"size,omitempty"`
		MimeType  string     `json:"mimeType,omitempty"`
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
		Error     string     `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{LocalPath: r.LocalPath}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			expires := r.ExpiresAt
			jr.ID = r.ID.String()
			jr.Token = r.Token
			jr.Size = r.Size
			jr.MimeType = r.MimeType
			jr.ExpiresAt = &expires
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

func (f *JSONFormatter) FormatInfo(w io.Writer, info *FileInfo) error {
	return writeJSON(w, info)
}

func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type jsonResult struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{ID: r.ID, Deleted: r.Deleted}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

func (f *JSONFormatter) FormatList(w io.Writer, items []ObjectInfo) error {
	if items == nil {
		items = []ObjectInfo{}
	}
	return writeJSON(w, items)
}

func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	type jsonProfile struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Token    string `json:"token,omitempty"`
		Default  bool   `json:"default,omitempty"`
	}

	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		p := &profiles[i]
		output.Profiles[i] = jsonProfile{
			Name:     p.Name,
			Endpoint: p.Endpoint,
			Token:    maskSecret(p.Token, showSecrets),
			Default:  p.Name == defaultName,
		}
	}

	return writeJSON(w, output)
}

func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Token    string `json:"token"`
		Default  bool   `json:"default"`
	}{
		Name:     profile.Name,
		Endpoint: profile.Endpoint,
		Token:    maskSecret(profile.Token, showSecrets),
		Default:  isDefault,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinTags(tags []ephemera.TagView) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// maskSecret shows the first and last four characters of a secret. Short
// secrets are fully masked and empty ones render as "(not set)".
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
