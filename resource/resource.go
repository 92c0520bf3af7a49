// Package resource implements the thread-safe resource registry: a map from
// content URL to local file path and transfer state. It carries its own
// lock, deliberately independent of world.World's mutex (lock ordering:
// WorldMutex -> SessionOutboundMutex -> ResourceRegistryMutex; this package
// must never be called while a WorldMutex is held).
package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"cyberspace/apperr"
)

type State int

const (
	NotPresent State = iota
	Transferring
	Present
)

func (s State) String() string {
	switch s {
	case NotPresent:
		return "NotPresent"
	case Transferring:
		return "Transferring"
	case Present:
		return "Present"
	default:
		return "Unknown"
	}
}

type Resource struct {
	URL         string
	LocalPath   string
	OwnerUserID uint64
	State       State
}

// Registry is the thread-safe url -> Resource map.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*Resource
	baseDir   string
}

func NewRegistry(baseDir string) *Registry {
	return &Registry{
		resources: make(map[string]*Resource),
		baseDir:   baseDir,
	}
}

// PathForURL returns the deterministic local path for a URL: a two-level
// directory shard of the URL's 64-bit xxhash followed by the hash itself,
// keeping the original extension. The path depends only on the URL string:
// two uploads under the same URL map to the same path.
func (r *Registry) PathForURL(url string) string {
	sum := xxhash.Sum64String(url)
	hexHash := fmt.Sprintf("%016x", sum)
	ext := filepath.Ext(url)
	return filepath.Join(r.baseDir, hexHash[:2], hexHash+ext)
}

// Register ensures an entry exists for url, defaulting to NotPresent.
func (r *Registry) Register(url string, ownerUserID uint64) *Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.resources[url]; ok {
		return res
	}
	res := &Resource{
		URL:         url,
		LocalPath:   r.PathForURL(url),
		OwnerUserID: ownerUserID,
		State:       NotPresent,
	}
	r.resources[url] = res
	return res
}

func (r *Registry) Get(url string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[url]
	if !ok {
		return Resource{}, false
	}
	return *res, true
}

// BeginTransfer moves a resource from NotPresent to Transferring.
func (r *Registry) BeginTransfer(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[url]
	if !ok {
		return apperr.Newf(apperr.NotFound, "resource %q not registered", url)
	}
	if res.State != NotPresent {
		return apperr.Newf(apperr.PermissionDenied, "resource %q is not NotPresent (state=%s)", url, res.State)
	}
	res.State = Transferring
	return nil
}

// CopyLocalFileToResourceDir is idempotent: it copies local to the
// content-addressed path for url and marks the resource Present. Calling it
// again with the same (local, url) pair is a no-op past the first copy.
func (r *Registry) CopyLocalFileToResourceDir(local, url string) error {
	dest := r.PathForURL(url)
	if _, err := os.Stat(dest); err == nil {
		r.markPresent(url, dest)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		r.markFailedTransfer(url)
		return apperr.Newf(apperr.IOFailure, "mkdir for resource %q: %v", url, err)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		r.markFailedTransfer(url)
		return apperr.Newf(apperr.IOFailure, "read local file %q: %v", local, err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.markFailedTransfer(url)
		return apperr.Newf(apperr.IOFailure, "write resource %q: %v", url, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		r.markFailedTransfer(url)
		return apperr.Newf(apperr.IOFailure, "rename resource %q: %v", url, err)
	}
	r.markPresent(url, dest)
	return nil
}

func (r *Registry) markPresent(url, dest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[url]
	if !ok {
		res = &Resource{URL: url}
		r.resources[url] = res
	}
	res.LocalPath = dest
	res.State = Present
}

// markFailedTransfer is the Transferring -> NotPresent edge from the state
// machine summary (upload failure).
func (r *Registry) markFailedTransfer(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.resources[url]; ok {
		res.State = NotPresent
	}
}

// RequestDownload only succeeds for Present resources.
func (r *Registry) RequestDownload(url string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[url]
	if !ok || res.State != Present {
		return Resource{}, apperr.Newf(apperr.NotFound, "resource %q not present", url)
	}
	return *res, nil
}

// All returns a snapshot of every resource, ordered by URL — used by the
// durable store's snapshot writer.
func (r *Registry) All() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Resource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// LoadAll replaces the registry contents wholesale, used at snapshot load.
func (r *Registry) LoadAll(resources []Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = make(map[string]*Resource, len(resources))
	for i := range resources {
		res := resources[i]
		r.resources[res.URL] = &res
	}
}

// ExtOf is a small helper used by callers constructing a URL from an
// uploaded filename, kept here since it mirrors PathForURL's extension
// handling.
func ExtOf(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
