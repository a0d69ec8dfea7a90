package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB keeps a receipt for every request finalized through this server, so the completion and
// status pages can be rendered without asking the backend.
type BoltDB struct {
	db *bolt.DB
}

// ErrReceiptNotFound is returned when no receipt is stored for a request.
var ErrReceiptNotFound = errors.New("receipt not found")

var receiptsBucket = []byte("receipts")

// NewBoltDB opens or creates the database file at path with 0600 permissions and makes sure the
// receipts bucket exists.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(receiptsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return BoltDB{}, fmt.Errorf("failed to create receipts bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

func receiptKey(requestID int) []byte {
	return []byte(fmt.Sprintf("%020d", requestID))
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// AddReceipt stores the receipt, replacing an earlier one for the same request.
func (b BoltDB) AddReceipt(_ context.Context, receipt models.Receipt) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		v, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("failed to marshal receipt: %w", err)
		}
		return tx.Bucket(receiptsBucket).Put(receiptKey(receipt.RequestID), v)
	})
}

// Receipt returns the receipt of a request, or ErrReceiptNotFound.
func (b BoltDB) Receipt(_ context.Context, requestID int) (models.Receipt, error) {
	var receipt models.Receipt
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(receiptsBucket).Get(receiptKey(requestID))
		if v == nil {
			return ErrReceiptNotFound
		}
		if err := json.Unmarshal(v, &receipt); err != nil {
			return fmt.Errorf("failed to unmarshal receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}
	return receipt, nil
}

// Receipts returns all stored receipts, most recently submitted first.
func (b BoltDB) Receipts(context.Context) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(receiptsBucket).ForEach(func(_, v []byte) error {
			var receipt models.Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("failed to unmarshal receipt: %w", err)
			}
			receipts = append(receipts, receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(receipts, func(a, b models.Receipt) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	return receipts, nil
}

// UpdateReceiptStep records the progress step of a stored request.
func (b BoltDB) UpdateReceiptStep(_ context.Context, requestID, step int) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(receiptsBucket)
		key := receiptKey(requestID)
		v := bucket.Get(key)
		if v == nil {
			return ErrReceiptNotFound
		}

		var receipt models.Receipt
		if err := json.Unmarshal(v, &receipt); err != nil {
			return fmt.Errorf("failed to unmarshal receipt: %w", err)
		}
		receipt.Step = step

		v, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("failed to marshal receipt: %w", err)
		}
		return bucket.Put(key, v)
	})
}
