package services

import (
	"context"
	"errors"
	"testing"

	"vaultbot/internal/amqp"
	"vaultbot/internal/core"
	"vaultbot/internal/storage"
)

type fakeSubmissionStore struct {
	saved   int
	updated int
	err     error
	closed  bool
}

func (f *fakeSubmissionStore) SaveSubmission(_ context.Context, periodID, vaultID string, amount float64) (storage.SubmissionRecord, error) {
	if f.err != nil {
		return storage.SubmissionRecord{}, f.err
	}
	f.saved++
	return storage.SubmissionRecord{ID: 7, Version: int64(f.saved), PeriodKey: "2025-07", Vault: core.Vault{ID: vaultID}, Amount: amount}, nil
}

func (f *fakeSubmissionStore) UpdateLatestAmount(_ context.Context, vaultID string, amount float64) (storage.SubmissionRecord, error) {
	if f.err != nil {
		return storage.SubmissionRecord{}, f.err
	}
	f.updated++
	return storage.SubmissionRecord{ID: 9, Version: 3, PeriodKey: "2025-06", Vault: core.Vault{ID: vaultID}, Amount: amount}, nil
}

func (f *fakeSubmissionStore) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	msgs []*amqp.SubmissionSyncMessage
	err  error
}

func (f *fakePublisher) PublishSubmissionSync(_ context.Context, msg *amqp.SubmissionSyncMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestSubmissionService_RecordPublishes(t *testing.T) {
	store := &fakeSubmissionStore{}
	pub := &fakePublisher{}
	svc := NewSubmissionService(store, pub)

	if err := svc.RecordSubmission(context.Background(), "1", "4", 12.5); err != nil {
		t.Fatal(err)
	}
	if store.saved != 1 || len(pub.msgs) != 1 {
		t.Fatalf("saved=%d published=%d", store.saved, len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.ID != 7 || msg.Version != 1 || msg.VaultID != "4" || msg.Amount != 12.5 || msg.PeriodKey != "2025-07" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestSubmissionService_PublishFailureIsNotFatal(t *testing.T) {
	svc := NewSubmissionService(&fakeSubmissionStore{}, &fakePublisher{err: errors.New("broker down")})
	if err := svc.ChangeVaultAmount(context.Background(), "4", 3); err != nil {
		t.Fatalf("publish failure should not fail the write: %v", err)
	}
}

func TestSubmissionService_StoreFailure(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewSubmissionService(&fakeSubmissionStore{err: core.ErrVaultNotFound}, pub)

	err := svc.RecordSubmission(context.Background(), "1", "4", 1)
	if !errors.Is(err, core.ErrVaultNotFound) {
		t.Fatalf("want ErrVaultNotFound, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Fatal("nothing should be published when the write fails")
	}
}

func TestSubmissionService_WithoutPublisher(t *testing.T) {
	store := &fakeSubmissionStore{}
	svc := NewSubmissionService(store, nil)
	if err := svc.RecordSubmission(context.Background(), "1", "4", 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !store.closed {
		t.Error("Close should close the storage")
	}
}
