package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/davecgh/go-spew/spew"
)

// ComputeSHA256Hash returns a hex encoded sha256 hash value calculated
// from the given object. Map keys are sorted before hashing, so equal
// inputs always produce equal hashes.
func ComputeSHA256Hash(obj any) string {
	hasher := sha256.New()
	DeepHashObject(hasher, obj)

	return hex.EncodeToString(hasher.Sum(nil))
}

// DeepHashObject writes specified object to hash using the spew library
// which follows pointers and prints actual values of the nested objects
// ensuring the hash does not change when a pointer changes.
func DeepHashObject(hasher hash.Hash, objectToWrite any) {
	hasher.Reset()
	printer := spew.ConfigState{
		Indent:         " ",
		SortKeys:       true,
		DisableMethods: true,
		SpewKeys:       true,
	}
	if _, err := printer.Fprintf(hasher, "%#v", objectToWrite); err != nil {
		panic(err)
	}
}
