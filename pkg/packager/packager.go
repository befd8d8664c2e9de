// Package packager implements the Edge Packager (C10): content-addressed
// bundles pairing a model directory with its manifest, registry entry, and
// benchmark summary, checksummed and tarred for reproducible transfer
// (spec §4.7). archive/tar and crypto/sha256 are the one deliberately
// stdlib corner of the domain stack (see DESIGN.md); the gzip layer uses
// klauspost/compress/gzip, already an indirect teacher dependency, instead
// of compress/gzip.
package packager

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/codeready-toolchain/milton/pkg/milerr"
)

// Manifest is the bundle's manifest.json (spec §4.7 step 3).
type Manifest struct {
	BundleID     string `json:"bundle_id"`
	Version      string `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	FileCount    int    `json:"file_count"`
	TotalBytes   int64  `json:"total_bytes"`
	ChecksumAlgo string `json:"checksum_algo"`
}

// BundleName formats spec §4.7's naming scheme:
// milton_edge_bundle_<version>_<YYYYMMDD_HHMMSS>.tar.gz
func BundleName(version string, t time.Time) string {
	return fmt.Sprintf("milton_edge_bundle_%s_%s.tar.gz", version, t.UTC().Format("20060102_150405"))
}

// fileEntry is one regular file staged into the bundle, in the fixed order
// SHA256SUMS and the tarball both use. sumPath is the path exactly as it
// appears both in the tar member name and in SHA256SUMS — "model_dir/..."
// for files copied from modelDir, bare "<name>.json" for the bundle's own
// metadata files — so SHA256SUMS verification never has to guess which
// prefix a listed path belongs under.
type fileEntry struct {
	relPath string
	absPath string
	sumPath string
	digest  string
	size    int64
}

// Build assembles and writes a bundle at bundlesDir per spec §4.7: copies
// modelDir's regular files, computes SHA256SUMS sorted by relpath, writes
// manifest.json/registry_entry.json/benchmark_summary.json, and tars
// everything with gzip in SHA256SUMS order. Returns the bundle's full path.
func Build(bundlesDir, modelDir, version string, registryEntry, benchmarkSummary any, now time.Time) (string, error) {
	entries, totalBytes, err := collectFiles(modelDir)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	bundleID := fmt.Sprintf("%s_%s", version, now.UTC().Format("20060102150405"))
	manifest := Manifest{
		BundleID:     bundleID,
		Version:      version,
		CreatedAt:    now,
		FileCount:    len(entries),
		TotalBytes:   totalBytes,
		ChecksumAlgo: "sha256",
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	registryJSON, err := json.MarshalIndent(registryEntry, "", "  ")
	if err != nil {
		return "", err
	}
	summaryJSON, err := json.MarshalIndent(benchmarkSummary, "", "  ")
	if err != nil {
		return "", err
	}

	// SHA256SUMS must list every regular file the tarball contains except
	// itself (spec §3's Bundle invariant) — the model directory's files
	// plus the three metadata files written alongside them, in the same
	// order the tarball writes them.
	metaEntries := []fileEntry{
		{sumPath: "manifest.json", digest: sha256Bytes(manifestJSON)},
		{sumPath: "registry_entry.json", digest: sha256Bytes(registryJSON)},
		{sumPath: "benchmark_summary.json", digest: sha256Bytes(summaryJSON)},
	}
	sumsContent := buildSHA256SUMS(entries) + buildSHA256SUMS(metaEntries)

	if err := os.MkdirAll(bundlesDir, 0o755); err != nil {
		return "", err
	}
	bundlePath := filepath.Join(bundlesDir, BundleName(version, now))
	out, err := os.Create(bundlePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", milerr.ErrIO, err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, e := range entries {
		if err := writeFileMember(tw, e.relPath, e.absPath, e.size); err != nil {
			return "", err
		}
	}
	if err := writeBytesMember(tw, "manifest.json", manifestJSON); err != nil {
		return "", err
	}
	if err := writeBytesMember(tw, "registry_entry.json", registryJSON); err != nil {
		return "", err
	}
	if err := writeBytesMember(tw, "benchmark_summary.json", summaryJSON); err != nil {
		return "", err
	}
	if err := writeBytesMember(tw, "SHA256SUMS", []byte(sumsContent)); err != nil {
		return "", err
	}

	return bundlePath, nil
}

// collectFiles walks modelDir collecting every regular file with its
// relative path, digest, and size.
func collectFiles(modelDir string) ([]fileEntry, int64, error) {
	var entries []fileEntry
	var total int64

	err := filepath.Walk(modelDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(modelDir, path)
		if err != nil {
			return err
		}
		digest, err := sha256File(path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		entries = append(entries, fileEntry{
			relPath: relSlash,
			absPath: path,
			sumPath: filepath.ToSlash(filepath.Join("model_dir", relSlash)),
			digest:  digest,
			size:    info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", milerr.ErrIO, err)
	}
	return entries, total, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sha256Bytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// buildSHA256SUMS formats one "hex  sumpath" line per file, in the order
// given by the caller (spec §4.7 step 2: model files sorted by relpath,
// metadata files in tar-write order).
func buildSHA256SUMS(entries []fileEntry) string {
	var out string
	for _, e := range entries {
		out += e.digest + "  " + e.sumPath + "\n"
	}
	return out
}

func writeFileMember(tw *tar.Writer, relPath, absPath string, size int64) error {
	f, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("%w: %v", milerr.ErrIO, err)
	}
	defer f.Close()

	hdr := &tar.Header{
		Name: filepath.Join("model_dir", relPath),
		Mode: 0o644,
		Size: size,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func writeBytesMember(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
