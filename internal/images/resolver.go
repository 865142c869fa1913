// Package images resolves image references embedded in chat messages into
// local file paths the model runtime can read.
package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"vlmodel/internal/core"
)

// dataURIPattern matches inline base64 image payloads:
// data:image/<subtype>;base64,<payload>
var dataURIPattern = regexp.MustCompile(`^data:image/(\w+);base64,(.+)$`)

// FileService is the part of the files service the resolver needs: the
// existence/expiration check plus the cached bytes' location.
type FileService interface {
	ContentPath(ctx context.Context, id string) (string, error)
}

// Resolver turns an image reference (inline data URI, internally issued
// file-handle URL, or generic remote URL) into a local path. The three
// forms are tried in that precedence order.
type Resolver struct {
	files        FileService
	client       *http.Client
	internalHost string
	logger       *slog.Logger
}

// NewResolver creates a resolver. internalHost is the host[:port] under
// which this server issues file-handle URLs; references to it are served
// from the local cache instead of being downloaded.
func NewResolver(files FileService, client *http.Client, internalHost string, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		files:        files,
		client:       client,
		internalHost: internalHost,
		logger:       logger.With("component", "images"),
	}
}

// Resolve produces a local path for ref. Freshly written files land in
// destDir under a randomly generated name; internal file handles return the
// cached bytes' location directly without copying.
func (r *Resolver) Resolve(ctx context.Context, ref string, destDir string) (string, error) {
	if m := dataURIPattern.FindStringSubmatch(ref); m != nil {
		return r.resolveDataURI(m[1], m[2], destDir)
	}
	if id, ok := r.internalFileID(ref); ok {
		return r.files.ContentPath(ctx, id)
	}
	return r.download(ctx, ref, destDir)
}

func (r *Resolver) resolveDataURI(subtype, payload, destDir string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid base64 image payload", err)
	}
	path, err := writeImage(destDir, subtype, data)
	if err != nil {
		return "", core.NewInternalError(err)
	}
	r.logger.Debug("saved inline image", "path", path, "bytes", len(data))
	return path, nil
}

// internalFileID reports whether ref is a file-handle URL issued by this
// server (path /v1/files/{id}/content on the configured internal host) and
// extracts the file id, which sits second to last in the path.
func (r *Resolver) internalFileID(ref string) (string, bool) {
	if r.internalHost == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != r.internalHost {
		return "", false
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) != 4 || segs[0] != "v1" || segs[1] != "files" || segs[3] != "content" {
		return "", false
	}
	return segs[2], true
}

func (r *Resolver) download(ctx context.Context, ref string, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", core.NewDownloadError(ref, 0, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", core.NewDownloadError(ref, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", core.NewDownloadError(ref, resp.StatusCode, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.NewDownloadError(ref, resp.StatusCode, err)
	}

	path, err := writeImage(destDir, extensionFor(resp.Header.Get("Content-Type")), data)
	if err != nil {
		return "", core.NewInternalError(err)
	}
	r.logger.Debug("downloaded image", "url", ref, "path", path, "bytes", len(data))
	return path, nil
}

// extensionFor infers a file extension from a Content-Type header value.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if sub, ok := strings.CutPrefix(mediaType, "image/"); ok && sub != "" {
			return sub
		}
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	return "bin"
}

// writeImage stores data under a fresh random name so concurrent resolutions
// never race onto the same destination.
func writeImage(destDir, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "." + ext
	path := filepath.Join(destDir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write image %s: %w", path, err)
	}
	return path, nil
}
