package idgen

import (
	"fmt"
	"sync"
	"time"
)

// Snowflake layout, 63 bits used:
//
//	41 bits millisecond timestamp since epoch | 10 bits worker id | 12 bits sequence
//
// Document numbers built from it are unique per worker and sort by creation time.
const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Document number prefixes.
const (
	PrefixTopUp       = "TOP"
	PrefixTransaction = "TXN"
	PrefixInvoice     = "INV"
	PrefixWithdrawal  = "WDR"
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// NewSnowflake returns a generator for the given worker id.
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be within 0-%d", maxWorkerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init sets the worker id of the package generator. Only the first call counts.
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = NewSnowflake(workerID)
	})
	return err
}

func NextID() int64 {
	if defaultGenerator == nil {
		_ = Init(1)
	}
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, spin until the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateNo builds a document number: prefix + yyyyMMddHHmmss + last 8 digits of a snowflake id.
func GenerateNo(prefix string) string {
	id := NextID()
	return fmt.Sprintf("%s%s%08d", prefix, time.Now().Format("20060102150405"), id%100000000)
}

func GenerateTopUpNo() string {
	return GenerateNo(PrefixTopUp)
}

func GenerateTransactionNo() string {
	return GenerateNo(PrefixTransaction)
}

func GenerateInvoiceNo() string {
	return GenerateNo(PrefixInvoice)
}

func GenerateWithdrawalNo() string {
	return GenerateNo(PrefixWithdrawal)
}
