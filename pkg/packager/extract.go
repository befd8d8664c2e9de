package packager

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/codeready-toolchain/milton/pkg/milerr"
)

// ErrManifestNotFound is returned when a bundle's tar stream has no
// manifest.json member.
var ErrManifestNotFound = errors.New("manifest.json not found in bundle")

// ExtractManifest streams a bundle's tar header index and decodes only the
// manifest.json member, never expanding any other member to disk or memory
// (spec §4.7 step 6).
func ExtractManifest(bundlePath string) (*Manifest, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", milerr.ErrIO, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", milerr.ErrBundleMalformed, err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrManifestNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", milerr.ErrBundleMalformed, err)
		}
		if hdr.Name != "manifest.json" {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", milerr.ErrBundleMalformed, err)
		}
		return &m, nil
	}
}
