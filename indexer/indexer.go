// Package indexer maintains secondary indexes over committed blocks so
// clients can query the critters an account owns without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/events"
	"github.com/critterlabs/critterchain/storage"
)

const prefixOwnerCritters = "idx:owner:critter:"

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventCritterCreated, idx.onCreated)
	emitter.Subscribe(events.EventCritterTransferred, idx.onTransferred)
	emitter.Subscribe(events.EventCritterPurchased, idx.onPurchased)
	return idx
}

// GetCrittersByOwner returns all critter IDs owned by the given pubkey.
func (idx *Indexer) GetCrittersByOwner(owner string) ([]uint32, error) {
	return idx.getList(prefixOwnerCritters + owner)
}

// ---- event handlers ----

func (idx *Indexer) onCreated(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	id, ok := ev.Data["critter_id"].(uint32)
	if owner == "" || !ok {
		return
	}
	_ = idx.addToList(prefixOwnerCritters+owner, id)
}

func (idx *Indexer) onTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	id, ok := ev.Data["critter_id"].(uint32)
	if !ok || from == "" || to == "" {
		return
	}
	idx.move(from, to, id)
}

func (idx *Indexer) onPurchased(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	buyer, _ := ev.Data["buyer"].(string)
	id, ok := ev.Data["critter_id"].(uint32)
	if !ok || seller == "" || buyer == "" {
		return
	}
	idx.move(seller, buyer, id)
}

func (idx *Indexer) move(from, to string, id uint32) {
	if err := idx.removeFromList(prefixOwnerCritters+from, id); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerCritters+to, id)
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]uint32, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []uint32
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key string, id uint32) error {
	ids, _ := idx.getList(key)
	ids = append(ids, id)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key string, id uint32) error {
	ids, _ := idx.getList(key)
	filtered := ids[:0]
	for _, v := range ids {
		if v != id {
			filtered = append(filtered, v)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
