package cache

import (
	"time"

	"github.com/golang/glog"
	"go.etcd.io/bbolt"

	"github.com/mqy/minichat/chatstore"
)

var bucketName = []byte("chat_messages")

// boltCache implements interface `IMessageCache` on a bbolt file.
type boltCache struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the cache file at path.
func Open(path string) (*boltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewBoltCache(db, time.Now), nil
}

// NewBoltCache wraps an opened db. The bucket is created lazily on first write.
func NewBoltCache(db *bbolt.DB, now func() time.Time) *boltCache {
	if now == nil {
		now = time.Now
	}
	return &boltCache{db: db, now: now}
}

func (c *boltCache) Close() error {
	return c.db.Close()
}

func (c *boltCache) Save(scopeKey string, messages []chatstore.Message) {
	data, err := encodeEntry(newEnvelope(messages, c.now()))
	if err != nil {
		glog.Errorf("cache: encode entry `%s` error: %v", scopeKey, err)
		cacheOps.WithLabelValues(opError).Inc()
		return
	}

	if err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(scopeKey), data)
	}); err != nil {
		glog.Errorf("cache: save `%s` error: %v", scopeKey, err)
		cacheOps.WithLabelValues(opError).Inc()
		return
	}

	glog.V(5).Infof("cache: saved %d messages to `%s`", len(messages), scopeKey)
	cacheOps.WithLabelValues(opSave).Inc()
}

func (c *boltCache) Load(scopeKey string) ([]chatstore.Message, bool) {
	var data []byte
	if err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(scopeKey)); v != nil {
			// v is only valid during the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		glog.Errorf("cache: load `%s` error: %v", scopeKey, err)
		cacheOps.WithLabelValues(opError).Inc()
		return nil, false
	}

	if data == nil {
		cacheOps.WithLabelValues(opMiss).Inc()
		return nil, false
	}

	e, version, err := decodeEntry(data)
	if err != nil {
		glog.Errorf("cache: corrupted entry `%s` deleted: %v", scopeKey, err)
		cacheOps.WithLabelValues(opCorrupted).Inc()
		c.Delete(scopeKey)
		cacheOps.WithLabelValues(opMiss).Inc()
		return nil, false
	}

	if version == legacyVersion {
		glog.V(5).Infof("cache: migrating legacy entry `%s`", scopeKey)
		cacheOps.WithLabelValues(opMigrated).Inc()
		c.Save(scopeKey, e.Messages)
		cacheOps.WithLabelValues(opHit).Inc()
		return e.Messages, true
	}

	if e.expired(c.now()) {
		glog.V(5).Infof("cache: expired entry `%s` deleted", scopeKey)
		cacheOps.WithLabelValues(opExpired).Inc()
		c.Delete(scopeKey)
		cacheOps.WithLabelValues(opMiss).Inc()
		return nil, false
	}

	cacheOps.WithLabelValues(opHit).Inc()
	return e.Messages, true
}

func (c *boltCache) Delete(scopeKey string) {
	if err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(scopeKey))
	}); err != nil {
		glog.Errorf("cache: delete `%s` error: %v", scopeKey, err)
		cacheOps.WithLabelValues(opError).Inc()
		return
	}
	cacheOps.WithLabelValues(opDelete).Inc()
}

func (c *boltCache) SweepExpired() int {
	start := time.Now()
	now := c.now()
	var deleted int

	if err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}

		// NOTE: keys can not be deleted while iterating with ForEach.
		var keys [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			e, version, err := decodeEntry(v)
			if err != nil {
				glog.Errorf("cache: sweep: corrupted entry `%s`: %v", k, err)
				cacheOps.WithLabelValues(opCorrupted).Inc()
				keys = append(keys, append([]byte(nil), k...))
			} else if version != legacyVersion && e.expired(now) {
				cacheOps.WithLabelValues(opExpired).Inc()
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	}); err != nil {
		glog.Errorf("cache: sweep error: %v", err)
		cacheOps.WithLabelValues(opError).Inc()
		return 0
	}

	glog.Infof("cache: swept %d entries, took %s", deleted, time.Since(start))
	return deleted
}
