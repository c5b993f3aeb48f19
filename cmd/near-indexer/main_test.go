package main

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/nearindexer/streamer/internal/batch"
	"github.com/nearindexer/streamer/internal/model"
)

var errPutFailed = errors.New("put failed")

type fakeStore struct {
	genesis *model.GenesisBlockData
	blocks  []model.BlockData
	deleted []string
	putErr  error
}

func (s *fakeStore) PutGenesis(g model.GenesisBlockData) error {
	s.genesis = &g
	return s.putErr
}

func (s *fakeStore) PutBlock(b model.BlockData) error {
	s.blocks = append(s.blocks, b)
	return s.putErr
}

func (s *fakeStore) DeleteAccounts(accountIDs []string) error {
	s.deleted = append(s.deleted, accountIDs...)
	return s.putErr
}

func (s *fakeStore) Close() error { return nil }

func TestWriteToLocalStoreIsANoOpWithoutAStore(t *testing.T) {
	// Should not panic when no store is wired in.
	writeToLocalStore(logrus.StandardLogger(), nil, batch.Payload{
		Blocks: []model.BlockData{{Block: model.Block{Height: 1}}},
	})
}

func TestWriteToLocalStoreMirrorsGenesisBlocksAndDeletions(t *testing.T) {
	s := &fakeStore{}
	payload := batch.Payload{
		Genesis:           &model.GenesisBlockData{Accounts: []model.Account{{AccountID: "a.near"}}},
		Blocks:            []model.BlockData{{Block: model.Block{Height: 1}}, {Block: model.Block{Height: 2}}},
		DeletedAccountIDs: []string{"b.near"},
	}
	writeToLocalStore(logrus.StandardLogger(), s, payload)

	if s.genesis == nil || len(s.genesis.Accounts) != 1 {
		t.Fatalf("expected genesis to be mirrored, got %+v", s.genesis)
	}
	if len(s.blocks) != 2 {
		t.Fatalf("expected 2 blocks mirrored, got %d", len(s.blocks))
	}
	if len(s.deleted) != 1 || s.deleted[0] != "b.near" {
		t.Fatalf("expected deleted accounts mirrored, got %v", s.deleted)
	}
}

func TestWriteToLocalStoreLogsButDoesNotPanicOnFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := &fakeStore{putErr: errPutFailed}

	writeToLocalStore(logger, s, batch.Payload{
		Blocks: []model.BlockData{{Block: model.Block{Height: 1}}},
	})

	if len(hook.Entries) == 0 {
		t.Fatalf("expected a warning to be logged on local store failure")
	}
}
