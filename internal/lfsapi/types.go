package lfsapi

import "time"

// MediaType is the content type the batch API speaks on both sides of
// the exchange.
const MediaType = "application/vnd.git-lfs+json"

type batchRequest struct {
	Operation string        `json:"operation"`
	Transfers []string      `json:"transfers"`
	Ref       batchRef      `json:"ref"`
	Objects   []BatchObject `json:"objects"`
	HashAlgo  string        `json:"hash_algo"`
}

type batchRef struct {
	Name string `json:"name"`
}

// BatchObject names one object by content id and byte size, in requests
// and responses alike.
type BatchObject struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

type batchResponse struct {
	Transfer string           `json:"transfer,omitempty"`
	Objects  []objectResponse `json:"objects"`
}

type objectResponse struct {
	BatchObject
	Authenticated bool               `json:"authenticated,omitempty"`
	Actions       map[string]*Action `json:"actions,omitempty"`
}

// Action is one authorized transfer granted by the server: a single
// authenticated GET. Transient, never persisted.
type Action struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresIn int               `json:"expires_in,omitempty"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}
