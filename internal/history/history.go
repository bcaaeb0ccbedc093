// internal/history/history.go
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"revdiff/internal/diff"
	"revdiff/internal/errors"
	"revdiff/internal/logging"
	"revdiff/internal/snapshot"
	"revdiff/internal/storage"
)

// ErrUnchanged is returned by Save, together with the latest version,
// when the text equals the latest version's text
var ErrUnchanged = errors.New("text unchanged since latest version")

type Options struct {
	// Every KeyframeInterval-th version stores a full snapshot
	KeyframeInterval int
	// Reconstructed texts kept in memory
	CacheSize int
}

// History stores documents as delta chains anchored on periodic keyframes
type History struct {
	db        *badger.DB
	versions  *storage.BadgerStore
	documents *storage.BadgerStore
	snapshots *snapshot.Store
	differ    diff.Differ
	texts     *lru.Cache[string, string]
	opts      Options
	logger    *logging.Logger

	// serializes saves so version numbers stay dense
	mu sync.Mutex
}

func New(db *badger.DB, snapshots *snapshot.Store, differ diff.Differ, opts Options, logger *logging.Logger) (*History, error) {
	if opts.KeyframeInterval < 1 {
		opts.KeyframeInterval = 10
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 128
	}
	texts, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &History{
		db:        db,
		versions:  storage.NewBadgerStore(db, "version"),
		documents: storage.NewBadgerStore(db, "document"),
		snapshots: snapshots,
		differ:    differ,
		texts:     texts,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Save records text as the next version of docID
func (h *History) Save(docID, text, author, message string) (*Version, error) {
	if err := validateDocID(docID); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.logger.WithDocument(docID)

	var parent *Version
	prevText := ""
	head, err := h.document(docID)
	switch {
	case err == nil:
		if parent, err = h.Get(docID, head.Latest); err != nil {
			return nil, err
		}
		if prevText, err = h.Text(docID, head.Latest); err != nil {
			return nil, err
		}
		if prevText == text {
			return parent, ErrUnchanged
		}
	case errors.Is(err, storage.ErrNotFound):
		head = &Document{ID: docID, CreatedAt: time.Now().UTC()}
	default:
		return nil, errors.Internal("loading document", err)
	}

	ops := h.differ.Compute(prevText, text)
	v := &Version{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Number:     head.Latest + 1,
		Delta:      h.differ.Encode(ops),
		Checksum:   checksum(text),
		Author:     author,
		Message:    message,
		Stats:      diff.ComputeStats(ops),
		CreatedAt:  time.Now().UTC(),
	}
	if parent != nil {
		v.ParentID = parent.ID
	}

	if h.isKeyframe(v.Number) {
		if v.SnapshotHash, err = h.snapshots.Put(text); err != nil {
			return nil, errors.Internal("storing snapshot", err)
		}
	}

	head.Latest = v.Number
	head.LatestID = v.ID
	head.UpdatedAt = v.CreatedAt

	err = h.db.Update(func(txn *badger.Txn) error {
		if err := h.versions.CreateTxn(txn, v); err != nil {
			return err
		}
		return h.documents.PutTxn(txn, head)
	})
	if err != nil {
		if v.SnapshotHash != "" {
			if relErr := h.snapshots.Release(v.SnapshotHash); relErr != nil {
				log.Warn("releasing orphaned snapshot", zap.Error(relErr))
			}
		}
		return nil, errors.Internal("saving version", err)
	}

	h.texts.Add(v.GetID(), text)
	log.Info("version saved",
		zap.Int("version", v.Number),
		zap.Bool("keyframe", v.IsKeyframe()),
		zap.Int("delta_bytes", len(v.Delta)),
		zap.Int("additions", v.Stats.Additions),
		zap.Int("deletions", v.Stats.Deletions),
	)
	return v, nil
}

func (h *History) Get(docID string, number int) (*Version, error) {
	if number < 1 {
		return nil, errors.ValidationError(fmt.Sprintf("invalid version number %d", number), number)
	}

	var v Version
	err := h.versions.Get(versionKey(docID, number), &v)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFound(fmt.Sprintf("version %d of %s not found", number, docID))
	}
	if err != nil {
		return nil, errors.Internal("loading version", err)
	}
	return &v, nil
}

func (h *History) Latest(docID string) (*Version, error) {
	head, err := h.document(docID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFound(fmt.Sprintf("document %s not found", docID))
	}
	if err != nil {
		return nil, errors.Internal("loading document", err)
	}
	return h.Get(docID, head.Latest)
}

// List returns the document's versions in ascending order
func (h *History) List(docID string) ([]Version, error) {
	var versions []Version
	if err := h.versions.ListPrefix(versionPrefix(docID), &versions); err != nil {
		return nil, errors.Internal("listing versions", err)
	}
	if len(versions) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("document %s not found", docID))
	}
	return versions, nil
}

// Documents returns every document head
func (h *History) Documents() ([]Document, error) {
	var docs []Document
	if err := h.documents.List(&docs); err != nil {
		return nil, errors.Internal("listing documents", err)
	}
	return docs, nil
}

// Text reconstructs the full text of a version from the nearest keyframe
// at or before it
func (h *History) Text(docID string, number int) (string, error) {
	key := versionKey(docID, number)
	if text, ok := h.texts.Get(key); ok {
		return text, nil
	}

	target, err := h.Get(docID, number)
	if err != nil {
		return "", err
	}

	chain, err := h.chain(docID, target)
	if err != nil {
		return "", err
	}

	log := h.logger.WithDocument(docID)
	fail := func(v *Version, cause error) (string, error) {
		log.Error("version could not be reconstructed",
			zap.Int("version", v.Number),
			zap.Int("target", number),
			zap.Error(cause),
		)
		return "", errors.Unreconstructable(docID, number, cause)
	}

	base := chain[0]
	text, err := h.snapshots.Get(base.SnapshotHash)
	if err != nil {
		return fail(base, err)
	}
	if err := verify(base, text); err != nil {
		return fail(base, err)
	}

	for _, v := range chain[1:] {
		res, err := h.differ.ApplyDelta(text, v.Delta)
		if err != nil {
			return fail(v, fmt.Errorf("applying delta of version %d: %w", v.Number, err))
		}
		text = res.Text
		if err := verify(v, text); err != nil {
			return fail(v, err)
		}
		h.texts.Add(v.GetID(), text)
	}

	h.texts.Add(key, text)
	return text, nil
}

// Diff returns the operations turning version from into version to
func (h *History) Diff(docID string, from, to int) ([]diff.Operation, error) {
	oldText, newText, err := h.pair(docID, from, to)
	if err != nil {
		return nil, err
	}
	return h.differ.Compute(oldText, newText), nil
}

// Compare renders the changes between two versions as HTML
func (h *History) Compare(docID string, from, to int) (string, error) {
	oldText, newText, err := h.pair(docID, from, to)
	if err != nil {
		return "", err
	}
	return h.differ.RenderHTML(oldText, newText), nil
}

func (h *History) pair(docID string, from, to int) (string, string, error) {
	oldText, err := h.Text(docID, from)
	if err != nil {
		return "", "", err
	}
	newText, err := h.Text(docID, to)
	if err != nil {
		return "", "", err
	}
	return oldText, newText, nil
}

// chain returns the versions from the nearest keyframe up to target
func (h *History) chain(docID string, target *Version) ([]*Version, error) {
	chain := []*Version{target}
	for v := target; !v.IsKeyframe(); {
		if v.Number == 1 {
			return nil, errors.Unreconstructable(docID, target.Number, fmt.Errorf("no keyframe before version %d", target.Number))
		}
		prev, err := h.Get(docID, v.Number-1)
		if err != nil {
			return nil, err
		}
		chain = append(chain, prev)
		v = prev
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (h *History) document(docID string) (*Document, error) {
	var doc Document
	if err := h.documents.Get(docID, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (h *History) isKeyframe(number int) bool {
	return number == 1 || number%h.opts.KeyframeInterval == 0
}

func validateDocID(docID string) error {
	if strings.TrimSpace(docID) == "" {
		return errors.ValidationError("document ID is required", nil)
	}
	if strings.Contains(docID, "/") {
		return errors.ValidationError("document ID must not contain '/'", docID)
	}
	return nil
}

func checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func verify(v *Version, text string) error {
	if got := checksum(text); got != v.Checksum {
		return fmt.Errorf("checksum mismatch for version %d", v.Number)
	}
	return nil
}
