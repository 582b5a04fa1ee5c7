package types

type OK struct {
	IsOK bool `json:"ok"`
}

type CouchDBError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// BaseDocument represents a single document returned by Get
type BaseDocument struct {

	// Rev is the revision number returned
	UnderscoreRev string `json:"_rev,omitempty"`
	Rev           string `json:"rev,omitempty"`
	ID            string `json:"id,omitempty"`
	UnderscoreID  string `json:"_id,omitempty"`
	OK            bool   `json:"ok,omitempty"`
}

// BlobDocument is how an opaque byte blob is stored in CouchDB: one document
// per well-known key, the blob base64-encoded in a field. The revision is
// handled internally by the repository on overwrite.
type BlobDocument struct {
	UnderscoreID  string `json:"_id,omitempty"`
	UnderscoreRev string `json:"_rev,omitempty"`
	BlobBase64    string `json:"blobBase64"`
	Updated       int64  `json:"updated"`
}
