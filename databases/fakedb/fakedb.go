// Package fakedb is an in-memory databases.DatabaseHelper for tests. It understands
// the subset of the mongo query and update language used by this project:
//
//	filters: equality (array fields match on any element), $eq, $ne, $in, $nin,
//	         $exists, $gt, $gte, $lt, $lte, $or, $and, dotted paths and array indexes
//	updates: $set, $setOnInsert, $unset, $inc, $addToSet (with $each), $pull (with $in)
//
// Transactions are serialized and rolled back on error. Operations issued outside a
// transaction while one is running are not isolated from it.
package fakedb

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/event-checkin-api/databases"
)

type txKey struct{}

// Database is an in-memory document database
type Database struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	collections map[string]*Collection
	failures    map[string][]error
}

// New returns an empty database
func New() *Database {
	return &Database{
		collections: make(map[string]*Collection),
		failures:    make(map[string][]error),
	}
}

// Collection returns the named collection, creating it on first use
func (d *Database) Collection(name string) databases.CollectionHelper {
	return d.collection(name)
}

func (d *Database) collection(name string) *Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = &Collection{db: d, name: name, watchers: make(map[int]chan struct{})}
		d.collections[name] = c
	}
	return c
}

// WithTransaction runs fn with every other transaction excluded and restores all
// collections if fn fails. Nested calls join the outer transaction.
func (d *Database) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	d.txMu.Lock()
	defer d.txMu.Unlock()

	snap := d.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		d.restore(snap)
		return err
	}
	return nil
}

// FailNext makes the next call of op (e.g. "UpdateOne") on the named collection
// return err. Failures queue up in the order they are registered.
func (d *Database) FailNext(collection, op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := collection + "." + op
	d.failures[key] = append(d.failures[key], err)
}

// Count returns the number of documents stored in the named collection
func (d *Database) Count(collection string) int {
	c := d.collection(collection)
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(c.docs)
}

func (d *Database) takeFailure(collection, op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := collection + "." + op
	errs := d.failures[key]
	if len(errs) == 0 {
		return nil
	}
	d.failures[key] = errs[1:]
	return errs[0]
}

func (d *Database) snapshot() map[string][]bson.M {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := make(map[string][]bson.M, len(d.collections))
	for name, c := range d.collections {
		docs := make([]bson.M, len(c.docs))
		for i, doc := range c.docs {
			docs[i] = clone(doc)
		}
		snap[name] = docs
	}
	return snap
}

func (d *Database) restore(snap map[string][]bson.M) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, c := range d.collections {
		c.docs = snap[name]
		c.notify()
	}
}

// Collection is an in-memory collection
type Collection struct {
	db       *Database
	name     string
	docs     []bson.M
	watchers map[int]chan struct{}
	nextID   int
}

// FindOne returns the first document matching filter, honoring sort
func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) databases.SingleResultHelper {
	if err := c.db.takeFailure(c.name, "FindOne"); err != nil {
		return &singleResult{err: err}
	}
	f, err := toM(filter)
	if err != nil {
		return &singleResult{err: err}
	}
	c.db.mu.Lock()
	var found []bson.M
	for _, doc := range c.docs {
		if matches(doc, f) {
			found = append(found, clone(doc))
		}
	}
	c.db.mu.Unlock()

	for _, o := range opts {
		if o != nil && o.Sort != nil {
			if err := sortDocs(found, o.Sort); err != nil {
				return &singleResult{err: err}
			}
		}
	}
	if len(found) == 0 {
		return &singleResult{err: mongo.ErrNoDocuments}
	}
	return &singleResult{doc: found[0]}
}

// Find returns every document matching filter, honoring sort, skip and limit
func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (databases.CursorHelper, error) {
	if err := c.db.takeFailure(c.name, "Find"); err != nil {
		return nil, err
	}
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	var found []bson.M
	for _, doc := range c.docs {
		if matches(doc, f) {
			found = append(found, clone(doc))
		}
	}
	c.db.mu.Unlock()

	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			if err := sortDocs(found, o.Sort); err != nil {
				return nil, err
			}
		}
		if o.Skip != nil {
			skip := int(*o.Skip)
			if skip > len(found) {
				skip = len(found)
			}
			found = found[skip:]
		}
		if o.Limit != nil && *o.Limit > 0 && int(*o.Limit) < len(found) {
			found = found[:*o.Limit]
		}
	}
	return &cursor{docs: found}, nil
}

// InsertOne stores a copy of document, assigning an _id when it has none
func (c *Collection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	if err := c.db.takeFailure(c.name, "InsertOne"); err != nil {
		return nil, err
	}
	doc, err := toM(document)
	if err != nil {
		return nil, err
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.docs = append(c.docs, doc)
	c.notify()
	return insertResult{id: doc["_id"]}, nil
}

// UpdateOne applies update to the first document matching filter
func (c *Collection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if err := c.db.takeFailure(c.name, "UpdateOne"); err != nil {
		return nil, err
	}
	return c.update(filter, update, false, upsert(opts))
}

// UpdateMany applies update to every document matching filter
func (c *Collection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if err := c.db.takeFailure(c.name, "UpdateMany"); err != nil {
		return nil, err
	}
	return c.update(filter, update, true, upsert(opts))
}

func upsert(opts []*options.UpdateOptions) bool {
	for _, o := range opts {
		if o != nil && o.Upsert != nil && *o.Upsert {
			return true
		}
	}
	return false
}

func (c *Collection) update(filter interface{}, update interface{}, many, upsert bool) (*mongo.UpdateResult, error) {
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	u, err := toM(update)
	if err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	res := &mongo.UpdateResult{}
	for i, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		updated := clone(doc)
		if err := applyUpdate(updated, u, false); err != nil {
			return nil, err
		}
		res.MatchedCount++
		if !reflect.DeepEqual(doc, updated) {
			res.ModifiedCount++
			c.docs[i] = updated
		}
		if !many {
			break
		}
	}
	if res.MatchedCount == 0 && upsert {
		doc := seedFromFilter(f)
		if err := applyUpdate(doc, u, true); err != nil {
			return nil, err
		}
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = primitive.NewObjectID()
		}
		c.docs = append(c.docs, doc)
		res.UpsertedCount = 1
		res.UpsertedID = doc["_id"]
	}
	if res.ModifiedCount > 0 || res.UpsertedCount > 0 {
		c.notify()
	}
	return res, nil
}

// FindOneAndUpdate applies update to the first match and returns it, after the update
// unless options ask for the original document
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) databases.SingleResultHelper {
	if err := c.db.takeFailure(c.name, "FindOneAndUpdate"); err != nil {
		return &singleResult{err: err}
	}
	f, err := toM(filter)
	if err != nil {
		return &singleResult{err: err}
	}
	u, err := toM(update)
	if err != nil {
		return &singleResult{err: err}
	}
	after := false
	for _, o := range opts {
		if o != nil && o.ReturnDocument != nil && *o.ReturnDocument == options.After {
			after = true
		}
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	for i, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		updated := clone(doc)
		if err := applyUpdate(updated, u, false); err != nil {
			return &singleResult{err: err}
		}
		c.docs[i] = updated
		c.notify()
		if after {
			return &singleResult{doc: clone(updated)}
		}
		return &singleResult{doc: doc}
	}
	return &singleResult{err: mongo.ErrNoDocuments}
}

// DeleteOne removes the first document matching filter
func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := c.db.takeFailure(c.name, "DeleteOne"); err != nil {
		return nil, err
	}
	return c.delete(filter, false)
}

// DeleteMany removes every document matching filter
func (c *Collection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := c.db.takeFailure(c.name, "DeleteMany"); err != nil {
		return nil, err
	}
	return c.delete(filter, true)
}

func (c *Collection) delete(filter interface{}, many bool) (*mongo.DeleteResult, error) {
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	res := &mongo.DeleteResult{}
	kept := c.docs[:0:0]
	for _, doc := range c.docs {
		if matches(doc, f) && (many || res.DeletedCount == 0) {
			res.DeletedCount++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	if res.DeletedCount > 0 {
		c.notify()
	}
	return res, nil
}

// CountDocuments counts the documents matching filter
func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	if err := c.db.takeFailure(c.name, "CountDocuments"); err != nil {
		return 0, err
	}
	f, err := toM(filter)
	if err != nil {
		return 0, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	var n int64
	for _, doc := range c.docs {
		if matches(doc, f) {
			n++
		}
	}
	return n, nil
}

// Distinct returns the distinct values of fieldName across matching documents. Array
// values contribute their elements.
func (c *Collection) Distinct(ctx context.Context, fieldName string, filter interface{}, opts ...*options.DistinctOptions) ([]interface{}, error) {
	if err := c.db.takeFailure(c.name, "Distinct"); err != nil {
		return nil, err
	}
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	values := []interface{}{}
	add := func(v interface{}) {
		for _, existing := range values {
			if equalValues(existing, v) {
				return
			}
		}
		values = append(values, v)
	}
	for _, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		v, ok := lookup(doc, fieldName)
		if !ok {
			continue
		}
		if arr, isArr := v.(primitive.A); isArr {
			for _, item := range arr {
				add(item)
			}
			continue
		}
		add(v)
	}
	return values, nil
}

// Watch returns a stream that yields once for every write to the collection after the
// call. Notifications that arrive while one is pending are coalesced; the pipeline is
// not evaluated.
func (c *Collection) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (databases.ChangeStreamHelper, error) {
	if err := c.db.takeFailure(c.name, "Watch"); err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan struct{}, 1)
	c.watchers[id] = ch
	return &changeStream{
		ch:     ch,
		closed: make(chan struct{}),
		unregister: func() {
			c.db.mu.Lock()
			defer c.db.mu.Unlock()
			delete(c.watchers, id)
		},
	}, nil
}

// notify must be called with db.mu held
func (c *Collection) notify() {
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type singleResult struct {
	doc bson.M
	err error
}

func (sr *singleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	b, err := bson.Marshal(sr.doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, v)
}

func (sr *singleResult) Err() error {
	return sr.err
}

type cursor struct {
	docs []bson.M
}

func (cr *cursor) All(ctx context.Context, results interface{}) error {
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("fakedb: results argument must be a pointer to a slice, got %T", results)
	}
	slice := rv.Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(cr.docs))
	for _, doc := range cr.docs {
		b, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		item := reflect.New(slice.Type().Elem())
		if err := bson.Unmarshal(b, item.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, item.Elem())
	}
	slice.Set(out)
	return nil
}

type insertResult struct {
	id interface{}
}

func (ir insertResult) Decode() interface{} {
	return ir.id
}

type changeStream struct {
	ch         chan struct{}
	closed     chan struct{}
	once       sync.Once
	unregister func()
	mu         sync.Mutex
	err        error
}

func (cs *changeStream) Next(ctx context.Context) bool {
	select {
	case <-cs.ch:
		return true
	case <-cs.closed:
		return false
	case <-ctx.Done():
		cs.mu.Lock()
		cs.err = ctx.Err()
		cs.mu.Unlock()
		return false
	}
}

func (cs *changeStream) Err() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.err
}

func (cs *changeStream) Close(ctx context.Context) error {
	cs.once.Do(func() {
		cs.unregister()
		close(cs.closed)
	})
	return nil
}

func sortDocs(docs []bson.M, order interface{}) error {
	keys, err := toD(order)
	if err != nil {
		return err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, _ := lookup(docs[i], k.Key)
			b, _ := lookup(docs[j], k.Key)
			cmp, ok := compareValues(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if direction(k.Value) < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

func direction(v interface{}) int {
	if f, ok := toFloat(v); ok && f < 0 {
		return -1
	}
	return 1
}
