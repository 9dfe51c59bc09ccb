// Package docstore keeps vaults, periods and submissions in MongoDB.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vaultbot/internal/core"
	ports "vaultbot/internal/sheets"
)

var _ ports.Store = (*Store)(nil)

const (
	usersCollection       = "users"
	vaultsCollection      = "vaults"
	periodsCollection     = "periods"
	submissionsCollection = "submissions"
)

// Store implements sheets.Store with one collection per entity.
type Store struct {
	client      *mongo.Client
	users       *mongo.Collection
	vaults      *mongo.Collection
	periods     *mongo.Collection
	submissions *mongo.Collection
	now         func() time.Time
}

// Connect dials uri, checks the server and prepares the indexes of
// database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client.Database(database))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	slog.InfoContext(ctx, "Connected to MongoDB", "database", database)
	return s, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		users:       db.Collection(usersCollection),
		vaults:      db.Collection(vaultsCollection),
		periods:     db.Collection(periodsCollection),
		submissions: db.Collection(submissionsCollection),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique keys the upserts rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.periods.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("index periods.key: %w", err)
	}
	if _, err := s.submissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "period_id", Value: 1}, {Key: "vault_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("index submissions.period_vault: %w", err)
	}
	if _, err := s.vaults.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("index vaults.owner_id: %w", err)
	}
	return nil
}

func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Ping reports whether the server answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("mongo client not connected")
	}
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func vaultOID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
	}
	return oid, nil
}

func periodOID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, id)
	}
	return oid, nil
}

func (d vaultDoc) toVault() core.Vault {
	return core.Vault{
		ID:       d.ID.Hex(),
		OwnerID:  d.OwnerID,
		Title:    d.Title,
		Currency: d.Currency,
		Active:   d.Active,
	}
}

func (s *Store) EnsureUser(ctx context.Context, u core.User) error {
	set := bson.M{}
	if u.Name != "" {
		set["name"] = u.Name
	}
	update := bson.M{"$setOnInsert": bson.M{"created_at": s.now()}}
	if len(set) > 0 {
		update["$set"] = set
	} else {
		update["$setOnInsert"].(bson.M)["name"] = ""
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": u.TelegramID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// Recipients lists the owners of active vaults, oldest vault first.
func (s *Store) Recipients(ctx context.Context) ([]int64, error) {
	docs, err := s.findVaults(ctx, bson.M{"active": true})
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	var out []int64
	for _, d := range docs {
		if !seen[d.OwnerID] {
			seen[d.OwnerID] = true
			out = append(out, d.OwnerID)
		}
	}
	return out, nil
}

func (s *Store) CreateVault(ctx context.Context, v core.Vault) (core.Vault, error) {
	cur, err := core.NormalizeCurrency(v.Currency)
	if err != nil {
		return core.Vault{}, err
	}
	v.Currency = cur
	v.Title = strings.TrimSpace(v.Title)
	if err := v.Validate(); err != nil {
		return core.Vault{}, err
	}
	if err := s.EnsureUser(ctx, core.User{TelegramID: v.OwnerID}); err != nil {
		return core.Vault{}, err
	}

	doc := vaultDoc{
		ID:        primitive.NewObjectID(),
		OwnerID:   v.OwnerID,
		Title:     v.Title,
		Currency:  v.Currency,
		Active:    true,
		CreatedAt: s.now(),
	}
	if _, err := s.vaults.InsertOne(ctx, doc); err != nil {
		return core.Vault{}, fmt.Errorf("insert vault: %w", err)
	}
	return doc.toVault(), nil
}

func (s *Store) ActiveVaults(ctx context.Context, ownerID int64) ([]core.Vault, error) {
	return s.OwnerVaults(ctx, ownerID, false)
}

func (s *Store) OwnerVaults(ctx context.Context, ownerID int64, includeInactive bool) ([]core.Vault, error) {
	filter := bson.M{"owner_id": ownerID}
	if !includeInactive {
		filter["active"] = true
	}
	docs, err := s.findVaults(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	last, err := s.lastAmounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]core.Vault, len(docs))
	for i, d := range docs {
		out[i] = d.toVault()
		if amount, ok := last[d.ID]; ok {
			a := amount
			out[i].LastAmount = &a
		}
	}
	return out, nil
}

func (s *Store) findVaults(ctx context.Context, filter bson.M) ([]vaultDoc, error) {
	cur, err := s.vaults.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find vaults: %w", err)
	}
	defer cur.Close(ctx)

	var docs []vaultDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode vaults: %w", err)
	}
	return docs, nil
}

// lastAmounts returns, per vault, the amount of its submission in the most
// recently created period.
func (s *Store) lastAmounts(ctx context.Context, vaultIDs []primitive.ObjectID) (map[primitive.ObjectID]float64, error) {
	subs, err := s.findSubmissions(ctx, bson.M{"vault_id": bson.M{"$in": vaultIDs}})
	if err != nil {
		return nil, err
	}
	latest, err := s.latestPerVault(ctx, subs)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]float64, len(latest))
	for vault, sub := range latest {
		out[vault] = sub.Amount
	}
	return out, nil
}

func (s *Store) latestPerVault(ctx context.Context, subs []submissionDoc) (map[primitive.ObjectID]submissionDoc, error) {
	if len(subs) == 0 {
		return nil, nil
	}
	periods, err := s.findPeriods(ctx)
	if err != nil {
		return nil, err
	}
	rank := make(map[primitive.ObjectID]int, len(periods))
	for i, p := range periods {
		rank[p.ID] = i
	}

	best := make(map[primitive.ObjectID]submissionDoc)
	for _, sub := range subs {
		cur, ok := best[sub.VaultID]
		if !ok || rank[sub.PeriodID] > rank[cur.PeriodID] {
			best[sub.VaultID] = sub
		}
	}
	return best, nil
}

func (s *Store) ActiveVaultCount(ctx context.Context) (int, error) {
	n, err := s.vaults.CountDocuments(ctx, bson.M{"active": true})
	if err != nil {
		return 0, fmt.Errorf("count vaults: %w", err)
	}
	return int(n), nil
}

// updateVault applies set to the vault with id, failing when it is unknown.
func (s *Store) updateVault(ctx context.Context, id string, set bson.M) error {
	oid, err := vaultOID(id)
	if err != nil {
		return err
	}
	res, err := s.vaults.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update vault %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
	}
	return nil
}

func (s *Store) RenameVault(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if err := (core.Vault{Title: title, Currency: "USD"}).Validate(); err != nil {
		return err
	}
	return s.updateVault(ctx, id, bson.M{"title": title})
}

func (s *Store) ChangeVaultCurrency(ctx context.Context, id, currency string) error {
	cur, err := core.NormalizeCurrency(currency)
	if err != nil {
		return err
	}
	return s.updateVault(ctx, id, bson.M{"currency": cur})
}

func (s *Store) SetVaultActive(ctx context.Context, id string, active bool) error {
	return s.updateVault(ctx, id, bson.M{"active": active})
}

func (s *Store) ChangeVaultAmount(ctx context.Context, id string, amount float64) error {
	oid, err := vaultOID(id)
	if err != nil {
		return err
	}
	if err := s.vaults.FindOne(ctx, bson.M{"_id": oid}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
		}
		return fmt.Errorf("find vault: %w", err)
	}

	subs, err := s.findSubmissions(ctx, bson.M{"vault_id": oid})
	if err != nil {
		return err
	}
	latest, err := s.latestPerVault(ctx, subs)
	if err != nil {
		return err
	}
	sub, ok := latest[oid]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNoSubmissions, id)
	}
	_, err = s.submissions.UpdateOne(ctx, bson.M{"_id": sub.ID},
		bson.M{"$set": bson.M{"amount": amount, "updated_at": s.now()}})
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// OpenPeriod upserts the period by key. Two owners racing on the same key
// hit the unique index; the loser reads the winner's document.
func (s *Store) OpenPeriod(ctx context.Context, key string) (core.Period, error) {
	_, err := s.periods.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "key": key, "created_at": s.now()}},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return core.Period{}, fmt.Errorf("upsert period %s: %w", key, err)
	}

	var doc periodDoc
	if err := s.periods.FindOne(ctx, bson.M{"key": key}).Decode(&doc); err != nil {
		return core.Period{}, fmt.Errorf("find period %s: %w", key, err)
	}
	return s.assemble(ctx, doc)
}

func (s *Store) RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error {
	pid, err := periodOID(periodID)
	if err != nil {
		return err
	}
	vid, err := vaultOID(vaultID)
	if err != nil {
		return err
	}
	if err := s.periods.FindOne(ctx, bson.M{"_id": pid}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", core.ErrPeriodNotFound, periodID)
	} else if err != nil {
		return fmt.Errorf("find period: %w", err)
	}
	if err := s.vaults.FindOne(ctx, bson.M{"_id": vid}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", core.ErrVaultNotFound, vaultID)
	} else if err != nil {
		return fmt.Errorf("find vault: %w", err)
	}

	now := s.now()
	_, err = s.submissions.UpdateOne(ctx,
		bson.M{"period_id": pid, "vault_id": vid},
		bson.M{
			"$set":         bson.M{"amount": amount, "updated_at": now},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "created_at": now},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]core.Period, error) {
	docs, err := s.findPeriods(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.findSubmissions(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	currencies, err := s.vaultCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	byPeriod := make(map[primitive.ObjectID][]submissionDoc)
	for _, sub := range subs {
		byPeriod[sub.PeriodID] = append(byPeriod[sub.PeriodID], sub)
	}
	out := make([]core.Period, len(docs))
	for i, d := range docs {
		out[i] = toPeriod(d, byPeriod[d.ID], currencies)
	}
	return out, nil
}

func (s *Store) Period(ctx context.Context, id string) (core.Period, error) {
	pid, err := periodOID(id)
	if err != nil {
		return core.Period{}, err
	}
	var doc periodDoc
	if err := s.periods.FindOne(ctx, bson.M{"_id": pid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Period{}, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, id)
		}
		return core.Period{}, fmt.Errorf("find period: %w", err)
	}
	return s.assemble(ctx, doc)
}

func (s *Store) assemble(ctx context.Context, doc periodDoc) (core.Period, error) {
	subs, err := s.findSubmissions(ctx, bson.M{"period_id": doc.ID})
	if err != nil {
		return core.Period{}, err
	}
	currencies, err := s.vaultCurrencies(ctx)
	if err != nil {
		return core.Period{}, err
	}
	return toPeriod(doc, subs, currencies), nil
}

// toPeriod converts documents into a period; submissions of deleted vaults
// are skipped.
func toPeriod(doc periodDoc, subs []submissionDoc, currencies map[primitive.ObjectID]string) core.Period {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	p := core.Period{ID: doc.ID.Hex(), Key: doc.Key, CreatedAt: doc.CreatedAt}
	for _, sub := range subs {
		cur, ok := currencies[sub.VaultID]
		if !ok {
			continue
		}
		p.Submissions = append(p.Submissions, core.Submission{
			VaultID:  sub.VaultID.Hex(),
			Currency: cur,
			Amount:   sub.Amount,
		})
	}
	return p
}

func (s *Store) findPeriods(ctx context.Context) ([]periodDoc, error) {
	cur, err := s.periods.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find periods: %w", err)
	}
	defer cur.Close(ctx)

	var docs []periodDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode periods: %w", err)
	}
	return docs, nil
}

func (s *Store) findSubmissions(ctx context.Context, filter bson.M) ([]submissionDoc, error) {
	cur, err := s.submissions.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []submissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return docs, nil
}

func (s *Store) vaultCurrencies(ctx context.Context) (map[primitive.ObjectID]string, error) {
	docs, err := s.findVaults(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]string, len(docs))
	for _, d := range docs {
		out[d.ID] = d.Currency
	}
	return out, nil
}
