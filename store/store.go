// Package store implements the concurrent ten-bucket container at the heart
// of novem. Bucket 0 is the neutral void bucket, buckets {3,6,9} are anchors
// hosting judgment, and the remaining six form the fixed traversal cycle.
//
// Concurrency discipline:
//   - writers to different buckets never contend with each other;
//   - writers to the same bucket serialize on that bucket's mutex;
//   - readers load committed snapshots atomically and never wait on writers;
//   - anchor judgment additionally serializes per anchor (see package judge).
//
// Lock ordering is fixed to bucket mutexes in ascending address order, then
// the identity index, then monitor/judge internals. No path acquires in the
// reverse direction.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spindleworks/novem/archive"
	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/item"
	"github.com/spindleworks/novem/judge"
	"github.com/spindleworks/novem/logger"
	"github.com/spindleworks/novem/subspace"
)

// Options carries the store-level tunables. Immutable once set; hot reload
// swaps in a fresh value.
type Options struct {
	// HighValueThreshold is the signal level at which items are offered to
	// the archive sink
	HighValueThreshold float64
}

// DefaultOptions returns the stock store tuning.
func DefaultOptions() Options {
	return Options{HighValueThreshold: 0.6}
}

// Store is the concurrent bucket container.
type Store struct {
	judge   *judge.Judge
	monitor *subspace.Monitor
	sink    archive.Sink
	opts    atomic.Pointer[Options]

	buckets [10]*bucket

	// imu guards the identity index mapping item id to current address.
	imu   sync.Mutex
	index map[string]digit.Address

	bus    *eventBus
	closed atomic.Bool
}

// New builds a store wired to the given judge and monitor. The sink may be
// nil when no archival collaborator is attached.
func New(j *judge.Judge, m *subspace.Monitor, sink archive.Sink, opts Options) *Store {
	s := &Store{
		judge:   j,
		monitor: m,
		sink:    sink,
		index:   make(map[string]digit.Address),
		bus:     newEventBus(),
	}
	s.opts.Store(&opts)
	for i := range s.buckets {
		s.buckets[i] = newBucket()
	}
	return s
}

// SetOptions atomically swaps in new store tuning.
func (s *Store) SetOptions(opts Options) {
	s.opts.Store(&opts)
}

// Options returns the current store tuning.
func (s *Store) Options() Options {
	return *s.opts.Load()
}

// Subscribe attaches an event-stream consumer. The returned cancel function
// must be called exactly once when done. Slow consumers lose events rather
// than slowing writers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.bus.subscribe()
}

// Close shuts the store down: further writes fail with ErrStoreClosed and
// all event subscriptions are torn down. Reads keep working.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.bus.closeAll()
	}
}

// Ingest constructs an item from upstream inputs, computes its initial
// address and performs the first upsert. This is the ingress boundary for
// the voice/text pipelines.
func (s *Store) Ingest(dist [9]float64, ch item.Channels, signal float64, counter uint64) (item.Export, error) {
	it, err := item.New(dist, ch, signal, counter)
	if err != nil {
		return item.Export{}, errors.Wrap(err, "ingest rejected")
	}
	if _, _, err := s.Upsert(it); err != nil {
		return item.Export{}, err
	}
	return it.Export(), nil
}

// Upsert inserts or relocates an item into the bucket matching its current
// address. If the item already exists under a different address it is
// atomically removed from the old bucket and added to the new one. Returns
// the previous address when the item existed.
//
// Ownership transfers to the store on first upsert: the caller must not
// mutate the item afterwards.
func (s *Store) Upsert(it *item.Item) (prev digit.Address, existed bool, err error) {
	if s.closed.Load() {
		return 0, false, errors.ErrStoreClosed
	}
	if !it.Address.Valid() {
		return 0, false, errors.Newf("invalid address %d", it.Address)
	}

	prev, existed, evs := s.place(it)
	for _, ev := range evs {
		s.bus.publish(ev)
	}
	return prev, existed, nil
}

// Remove deletes an item from the store by identity.
func (s *Store) Remove(id string) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	for {
		s.imu.Lock()
		addr, ok := s.index[id]
		s.imu.Unlock()
		if !ok {
			return errors.NewNotFoundError("item %s", id)
		}

		b := s.buckets[addr]
		b.mu.Lock()
		s.imu.Lock()
		if cur, ok := s.index[id]; !ok || cur != addr {
			// Moved (or removed) while we were acquiring; retry
			s.imu.Unlock()
			b.mu.Unlock()
			continue
		}
		delete(s.index, id)
		s.imu.Unlock()
		delete(b.items, id)
		b.commit()
		b.mu.Unlock()

		s.bus.publish(Event{Kind: EventRemove, At: time.Now(), ItemID: id, From: addr, To: addr})
		return nil
	}
}

// SnapshotRead returns a point-in-time view of the bucket's residents. The
// view reflects a committed state from some real moment between call and
// return and never blocks on concurrent writers.
func (s *Store) SnapshotRead(addr digit.Address) ([]item.Export, error) {
	if !addr.Valid() {
		return nil, errors.Newf("invalid address %d", addr)
	}
	return s.buckets[addr].snapshot(), nil
}

// Len returns the committed resident count of a bucket. Invalid addresses
// report zero.
func (s *Store) Len(addr digit.Address) int {
	if !addr.Valid() {
		return 0
	}
	return s.buckets[addr].size()
}

// IterAll returns committed snapshots of every bucket, concatenated in
// address order. Buckets are snapshotted independently, so the result is
// per-bucket consistent, not cross-bucket consistent.
func (s *Store) IterAll() []item.Export {
	var out []item.Export
	for _, b := range s.buckets {
		out = append(out, b.snapshot()...)
	}
	return out
}

// Stats returns the running channel aggregate for a bucket.
func (s *Store) Stats(addr digit.Address) ChannelStats {
	if !addr.Valid() {
		return ChannelStats{}
	}
	b := s.buckets[addr]
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Subspace returns the latest subspace snapshot for a bucket, or nil when
// none has been computed.
func (s *Store) Subspace(addr digit.Address) *subspace.Snapshot {
	return s.monitor.Current(addr)
}

// Step advances an item one traversal step: the lifecycle counter
// increments (saturating), cycle positions move to their successor or
// predecessor depending on direction, anchors move to their cycle exit, and
// the void bucket holds still. Step never lands on an anchor; anchors are
// reached through Rekey.
func (s *Store) Step(id string) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	var evs []Event
	var next digit.Address
	var move bool

	err := s.withItem(id, func(addr digit.Address, it *item.Item) error {
		if !it.Depth.Inc() {
			evs = append(evs, Event{
				Kind: EventSaturation, At: time.Now(), ItemID: id,
				From: addr, To: addr, Detail: "lifecycle counter saturated",
			})
		}
		switch {
		case addr.IsCycle():
			var err error
			if it.Forward {
				next, err = addr.Successor()
			} else {
				next, err = addr.Predecessor()
			}
			if err != nil {
				return err
			}
			move = true
		case addr.IsAnchor():
			var err error
			next, err = addr.AnchorExit(it.Forward)
			if err != nil {
				return err
			}
			move = true
		default:
			// Void bucket: items rest until rekeyed
		}
		return nil
	})
	if err != nil {
		return err
	}

	if move {
		if _, moveEvs, err := s.moveExisting(id, next); err == nil {
			evs = append(evs, moveEvs...)
		} else if !errors.IsNotFoundError(err) {
			return err
		}
	}

	for _, ev := range evs {
		s.bus.publish(ev)
	}
	return nil
}

// Rekey updates an item's source counter, recomputes its address and
// relocates it, triggering anchor judgment when the new address is an
// anchor. This is how mutation of the underlying key flows into the store.
func (s *Store) Rekey(id string, counter uint64) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	var target, cur digit.Address
	err := s.withItem(id, func(addr digit.Address, it *item.Item) error {
		cur = addr
		it.Counter = counter
		it.UpdatedAt = time.Now()
		target = digit.Reduce(counter)
		return nil
	})
	if err != nil {
		return err
	}

	var evs []Event
	if target == cur {
		// Key changed but the address held still; an anchor still re-judges
		// against the freshly mutated key.
		if target.IsAnchor() {
			evs = s.judgeInPlace(id, target)
		}
	} else {
		_, evs, err = s.moveExisting(id, target)
		if err != nil && !errors.IsNotFoundError(err) {
			return err
		}
	}
	for _, ev := range evs {
		s.bus.publish(ev)
	}
	return nil
}

// judgeInPlace runs anchor judgment for an item already resident at the
// anchor, without relocation.
func (s *Store) judgeInPlace(id string, anchor digit.Address) []Event {
	b := s.buckets[anchor]
	b.mu.Lock()
	it, here := b.items[id]
	if !here {
		b.mu.Unlock()
		return nil
	}
	evs := s.arriveLocked(b, it, anchor, nil)
	b.commit()
	b.mu.Unlock()
	return evs
}

// withItem runs fn against the live item under its bucket's write lock,
// retrying if the item relocates between lookup and lock acquisition.
func (s *Store) withItem(id string, fn func(digit.Address, *item.Item) error) error {
	for {
		s.imu.Lock()
		addr, ok := s.index[id]
		s.imu.Unlock()
		if !ok {
			return errors.NewNotFoundError("item %s", id)
		}

		b := s.buckets[addr]
		b.mu.Lock()
		it, here := b.items[id]
		if !here {
			b.mu.Unlock()
			continue
		}
		err := fn(addr, it)
		b.commit()
		b.mu.Unlock()
		return err
	}
}

// place inserts or relocates the item into the bucket matching its current
// address, running anchor judgment when it lands on an anchor. Returns any
// previous address and the events to publish.
func (s *Store) place(it *item.Item) (prev digit.Address, existed bool, evs []Event) {
	target := it.Address

	for {
		s.imu.Lock()
		cur, ok := s.index[it.ID]
		s.imu.Unlock()

		if !ok {
			// Fresh insert: single bucket lock
			b := s.buckets[target]
			b.mu.Lock()
			s.imu.Lock()
			if _, raced := s.index[it.ID]; raced {
				s.imu.Unlock()
				b.mu.Unlock()
				continue
			}
			s.index[it.ID] = target
			s.imu.Unlock()

			b.items[it.ID] = it
			b.record(it.Channels)
			s.monitor.Observe(target, it.Channels.Triple())
			evs = s.arriveLocked(b, it, target, evs)
			b.commit()
			export := it.Export()
			b.mu.Unlock()

			evs = append(evs, Event{Kind: EventUpsert, At: time.Now(), ItemID: it.ID, From: target, To: target})
			evs = s.offerHighValue(export, evs)
			return 0, false, evs
		}

		if cur == target {
			// Same bucket: refresh in place
			b := s.buckets[target]
			b.mu.Lock()
			s.imu.Lock()
			if now, still := s.index[it.ID]; !still || now != cur {
				s.imu.Unlock()
				b.mu.Unlock()
				continue
			}
			s.imu.Unlock()
			b.items[it.ID] = it
			b.record(it.Channels)
			s.monitor.Observe(target, it.Channels.Triple())
			evs = s.arriveLocked(b, it, target, evs)
			b.commit()
			export := it.Export()
			b.mu.Unlock()

			evs = append(evs, Event{Kind: EventUpsert, At: time.Now(), ItemID: it.ID, From: cur, To: target})
			evs = s.offerHighValue(export, evs)
			return cur, true, evs
		}

		// Relocation: both bucket locks in ascending address order
		lo, hi := cur, target
		if lo > hi {
			lo, hi = hi, lo
		}
		from, to := s.buckets[cur], s.buckets[target]
		s.buckets[lo].mu.Lock()
		s.buckets[hi].mu.Lock()

		s.imu.Lock()
		if now, still := s.index[it.ID]; !still || now != cur {
			s.imu.Unlock()
			s.buckets[hi].mu.Unlock()
			s.buckets[lo].mu.Unlock()
			continue
		}
		s.index[it.ID] = target
		s.imu.Unlock()

		delete(from.items, it.ID)
		from.commit()
		to.items[it.ID] = it
		to.record(it.Channels)
		s.monitor.Observe(target, it.Channels.Triple())
		evs = s.arriveLocked(to, it, target, evs)
		to.commit()
		export := it.Export()
		s.buckets[hi].mu.Unlock()
		s.buckets[lo].mu.Unlock()

		evs = append(evs, Event{Kind: EventUpsert, At: time.Now(), ItemID: it.ID, From: cur, To: target})
		evs = s.offerHighValue(export, evs)
		return cur, true, evs
	}
}

// moveExisting relocates an already-stored item to the given address,
// updating the item's own address field and judging on anchor arrival.
func (s *Store) moveExisting(id string, target digit.Address) (prev digit.Address, evs []Event, err error) {
	for {
		s.imu.Lock()
		cur, ok := s.index[id]
		s.imu.Unlock()
		if !ok {
			return 0, nil, errors.NewNotFoundError("item %s", id)
		}
		if cur == target {
			return cur, nil, nil
		}

		lo, hi := cur, target
		if lo > hi {
			lo, hi = hi, lo
		}
		from, to := s.buckets[cur], s.buckets[target]
		s.buckets[lo].mu.Lock()
		s.buckets[hi].mu.Lock()

		it, here := from.items[id]
		if !here {
			s.buckets[hi].mu.Unlock()
			s.buckets[lo].mu.Unlock()
			continue
		}

		s.imu.Lock()
		if now, still := s.index[id]; !still || now != cur {
			s.imu.Unlock()
			s.buckets[hi].mu.Unlock()
			s.buckets[lo].mu.Unlock()
			continue
		}
		s.index[id] = target
		s.imu.Unlock()

		delete(from.items, id)
		from.commit()
		it.Address = target
		to.items[id] = it
		to.record(it.Channels)
		s.monitor.Observe(target, it.Channels.Triple())
		evs = s.arriveLocked(to, it, target, evs)
		to.commit()
		export := it.Export()
		s.buckets[hi].mu.Unlock()
		s.buckets[lo].mu.Unlock()

		evs = append(evs, Event{Kind: EventUpsert, At: time.Now(), ItemID: id, From: cur, To: target})
		evs = s.offerHighValue(export, evs)
		return cur, evs, nil
	}
}

// arriveLocked runs anchor judgment for an item that just landed on an
// anchor bucket. Caller holds the bucket's write lock; the judge adds its
// own per-anchor serialization against threshold swaps. Non-anchor arrivals
// are a no-op.
func (s *Store) arriveLocked(b *bucket, it *item.Item, addr digit.Address, evs []Event) []Event {
	if !addr.IsAnchor() {
		return evs
	}

	snap := s.monitor.Refresh(addr)
	res, err := s.judge.Evaluate(addr, it, snap)
	if err != nil {
		// Unreachable given the anchor check above; surface loudly anyway
		logger.Errorw("anchor judgment failed",
			logger.FieldItem, it.ID,
			logger.FieldAnchor, int(addr),
			logger.FieldError, err.Error())
		return evs
	}

	now := time.Now()
	if res.RenormalizeFailed {
		logger.Warnw("zero-sum distribution left unchanged by amplification",
			logger.FieldItem, it.ID,
			logger.FieldAnchor, int(addr))
		evs = append(evs, Event{
			Kind: EventWarning, At: now, ItemID: it.ID, From: addr, To: addr,
			Detail: "zero-sum distribution not renormalized",
		})
	}

	evs = append(evs, Event{
		Kind: EventJudgment, At: now, ItemID: it.ID, From: addr, To: addr,
		Decision: res.Decision, Signal: res.Signal, Divergence: res.Divergence,
	})

	if res.Decision == judge.DecisionAbsorb {
		s.imu.Lock()
		delete(s.index, it.ID)
		s.imu.Unlock()
		delete(b.items, it.ID)
		evs = append(evs, Event{
			Kind: EventAbsorb, At: now, ItemID: it.ID, From: addr, To: addr,
			Signal: res.Signal, Divergence: res.Divergence,
		})
	}
	return evs
}

// offerHighValue offers a read-only copy to the archive sink when the signal
// crosses the configured threshold.
func (s *Store) offerHighValue(ex item.Export, evs []Event) []Event {
	if s.sink == nil {
		return evs
	}
	if ex.Signal < s.opts.Load().HighValueThreshold {
		return evs
	}
	if err := s.sink.Offer(ex); err != nil {
		logger.Warnw("archive sink rejected high-value item",
			logger.FieldItem, ex.ID,
			logger.FieldError, err.Error())
		return append(evs, Event{
			Kind: EventWarning, At: time.Now(), ItemID: ex.ID,
			From: ex.Address, To: ex.Address, Detail: "sink offer failed",
		})
	}
	return append(evs, Event{
		Kind: EventHighValue, At: time.Now(), ItemID: ex.ID,
		From: ex.Address, To: ex.Address, Signal: ex.Signal,
	})
}
