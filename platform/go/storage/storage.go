// Package storage is the document store that receives generated receipts and
// statements as opaque blobs. Rendering (PDF etc.) happens outside the engine.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// DocumentStore persists blobs under a logical key.
type DocumentStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (ObjectLocation, error)
	Check(ctx context.Context) error
}

// ObjectLocation describes where a blob lives.
type ObjectLocation struct {
	Bucket   string
	FullPath string
}

func (l ObjectLocation) String() string {
	if l.Bucket == "" {
		return l.FullPath
	}
	return l.Bucket + "/" + l.FullPath
}

// ResolveObjectLocation combines a deployment prefix and a logical key into a bucket/path pair.
//   - bucket comes from deployment configuration; local stores pass their base directory.
//   - prefix is the environment prefix, e.g. "dev/rentals"; a trailing slash is optional.
//   - logicalKey is a store-relative key such as "receipts/<contract_id>/<payment_id>.json".
func ResolveObjectLocation(bucket, prefix, logicalKey string) (ObjectLocation, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ObjectLocation{}, fmt.Errorf("bucket is required")
	}
	key := strings.TrimPrefix(strings.TrimSpace(logicalKey), "/")
	if key == "" {
		return ObjectLocation{}, fmt.Errorf("logical key is required")
	}
	if strings.Contains(key, "..") {
		return ObjectLocation{}, fmt.Errorf("logical key %q must not contain '..'", logicalKey)
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ObjectLocation{Bucket: bucket, FullPath: key}, nil
	}
	return ObjectLocation{Bucket: bucket, FullPath: prefix + "/" + key}, nil
}

// ReceiptKey is the logical key of a payment receipt request.
func ReceiptKey(contractID, paymentID string) string {
	return "receipts/" + contractID + "/" + paymentID + ".json"
}

// DepositStatementKey is the logical key of a deposit refund statement request.
func DepositStatementKey(contractID, paymentID string) string {
	return "deposits/" + contractID + "/" + paymentID + ".json"
}

// Nop discards documents. Used when no storage backend is configured.
type Nop struct{}

func (Nop) Put(_ context.Context, key, _ string, _ []byte) (ObjectLocation, error) {
	return ObjectLocation{FullPath: key}, nil
}

func (Nop) Check(context.Context) error { return nil }

var _ DocumentStore = Nop{}
