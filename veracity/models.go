package veracity

import "gorm.io/gorm"

// Image is a stored record of an uploaded image's hash pair. The crypto hash
// is the image identity; re-uploads of identical pixels land on the same row.
type Image struct {
	gorm.Model
	CHash []byte `gorm:"uniqueIndex;size:32"`
	PHash []byte `gorm:"index;size:32"`
	// LeafIndex is the index assigned by the transparency log, if the leaf
	// has been queued.
	LeafIndex int64
}
