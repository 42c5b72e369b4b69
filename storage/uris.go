package storage

import (
	"strings"

	"github.com/ruteri/verifiable-backends/interfaces"
)

// extractCID normalizes the URI forms an IPFS-family backend may be
// handed back: ipfs://CID, a gateway URL with /ipfs/CID in the path,
// or a bare CID.
func extractCID(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		cid := strings.TrimPrefix(uri, "ipfs://")
		cid = strings.TrimSuffix(cid, "/")
		if cid == "" {
			return "", interfaces.NewError(interfaces.KindValidation, "ipfs", "empty CID in URI: "+uri)
		}
		return cid, nil

	case strings.Contains(uri, "/ipfs/"):
		rest := uri[strings.Index(uri, "/ipfs/")+len("/ipfs/"):]
		cid := strings.SplitN(rest, "/", 2)[0]
		cid = strings.SplitN(cid, "?", 2)[0]
		if cid == "" {
			return "", interfaces.NewError(interfaces.KindValidation, "ipfs", "empty CID in gateway URI: "+uri)
		}
		return cid, nil

	case uri == "":
		return "", interfaces.NewError(interfaces.KindValidation, "ipfs", "empty URI")

	case strings.Contains(uri, "://"):
		return "", interfaces.NewError(interfaces.KindValidation, "ipfs", "not an IPFS URI: "+uri)

	default:
		// Bare CID.
		return uri, nil
	}
}

// extractRoot normalizes 0G URI forms: zerog://ROOT, 0g://ROOT or a
// bare merkle root.
func extractRoot(uri string) (string, error) {
	root := uri
	switch {
	case strings.HasPrefix(uri, "zerog://"):
		root = strings.TrimPrefix(uri, "zerog://")
	case strings.HasPrefix(uri, "0g://"):
		root = strings.TrimPrefix(uri, "0g://")
	case strings.Contains(uri, "://"):
		return "", interfaces.NewError(interfaces.KindValidation, "zerog", "not a 0G URI: "+uri)
	}
	root = strings.TrimSuffix(root, "/")
	if root == "" {
		return "", interfaces.NewError(interfaces.KindValidation, "zerog", "empty root in URI: "+uri)
	}
	return root, nil
}

// extractContentHash normalizes hash-addressed URI forms used by the
// s3, vault and file backends: scheme://host/prefix/HASH or a bare
// hex hash. The hash is always the last path segment.
func extractContentHash(uri, adapter string) (string, error) {
	if uri == "" {
		return "", interfaces.NewError(interfaces.KindValidation, adapter, "empty URI")
	}

	trimmed := strings.TrimSuffix(uri, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "", interfaces.NewError(interfaces.KindValidation, adapter, "no content hash in URI: "+uri)
	}
	return trimmed, nil
}
