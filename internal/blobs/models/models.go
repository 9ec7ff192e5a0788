// Package models defines stored files and upload requests.
package models

import (
	"io"
	"time"
)

// File is the metadata of one stored blob. Size and Checksum describe the
// original bytes; StoredSize and Compression describe what the store holds.
type File struct {
	ID          string    `json:"id"`
	BucketID    string    `json:"bucketId"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	StoredSize  int64     `json:"sizeStored"`
	Checksum    string    `json:"checksum"`
	Compression string    `json:"compression"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnknownSize marks an upload whose length is not known in advance.
const UnknownSize int64 = -1

// UploadInput is one upload request. Size is the declared byte length, or
// UnknownSize when the caller cannot tell.
type UploadInput struct {
	Reader   io.Reader
	Size     int64
	Filename string
}

func (f *File) Clone() *File {
	cp := *f
	return &cp
}
