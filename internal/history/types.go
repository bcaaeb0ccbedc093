package history

import (
	"fmt"
	"time"

	"revdiff/internal/diff"
)

// Version is one saved state of a document. Its text is the parent's
// text with Delta applied; keyframes also carry a full snapshot.
type Version struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	Number       int        `json:"number"`
	ParentID     string     `json:"parent_id,omitempty"`
	Delta        diff.Delta `json:"delta"`
	SnapshotHash string     `json:"snapshot_hash,omitempty"`
	Checksum     string     `json:"checksum"`
	Author       string     `json:"author,omitempty"`
	Message      string     `json:"message,omitempty"`
	Stats        diff.Stats `json:"stats"`
	CreatedAt    time.Time  `json:"created_at"`
}

// GetID returns the storage key. Zero padded numbers keep versions in
// order under the document prefix.
func (v *Version) GetID() string {
	return versionKey(v.DocumentID, v.Number)
}

func (v *Version) IsKeyframe() bool {
	return v.SnapshotHash != ""
}

// Document is the head record of a document's version chain
type Document struct {
	ID        string    `json:"id"`
	Latest    int       `json:"latest"`
	LatestID  string    `json:"latest_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Document) GetID() string { return d.ID }

func versionKey(docID string, number int) string {
	return fmt.Sprintf("%s/%010d", docID, number)
}

func versionPrefix(docID string) string {
	return docID + "/"
}
