package index

import "errors"

var (
	// ErrInvalidDimension indicates a non-positive vector dimension.
	ErrInvalidDimension = errors.New("vector dimension must be positive")

	// ErrDimensionMismatch indicates a vector whose length differs from
	// the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrVectorCountMismatch indicates a batch whose documents and
	// vectors differ in number.
	ErrVectorCountMismatch = errors.New("documents and vectors count mismatch")

	// ErrCorruptIndex indicates on-disk artifacts that disagree with each
	// other or with the recorded dimension.
	ErrCorruptIndex = errors.New("corrupt index files")
)
